package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/tutorbot/tutorbot/internal/ai"
	"github.com/tutorbot/tutorbot/internal/bot/handlers"
	"github.com/tutorbot/tutorbot/internal/broadcast"
	"github.com/tutorbot/tutorbot/internal/config"
	"github.com/tutorbot/tutorbot/internal/database"
	"github.com/tutorbot/tutorbot/internal/session"
)

const testToken = "test-token"

// apiCall is one request received by the fake Bot API.
type apiCall struct {
	Method string
	Params url.Values
}

// fakeTelegram is an httptest server speaking enough of the Bot API for the handlers.
type fakeTelegram struct {
	mu     sync.Mutex
	calls  []apiCall
	nextID int
	files  map[string][]byte
	srv    *httptest.Server
}

func newFakeTelegram(t *testing.T) *fakeTelegram {
	t.Helper()
	f := &fakeTelegram{files: map[string][]byte{}, nextID: 100}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeTelegram) newBot(t *testing.T) *bot.Bot {
	t.Helper()
	b, err := bot.New(testToken, bot.WithServerURL(f.srv.URL), bot.WithSkipGetMe())
	require.NoError(t, err)
	return b
}

func (f *fakeTelegram) addFile(fileID string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[fileID] = data
}

func (f *fakeTelegram) serve(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/file/") {
		f.mu.Lock()
		data, ok := f.files[path.Base(r.URL.Path)]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
		return
	}

	method := path.Base(r.URL.Path)
	params := readParams(r)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Params: params})
	f.nextID++
	id := f.nextID
	data := f.files[params.Get("file_id")]
	f.mu.Unlock()

	var result any = true
	switch method {
	case "sendMessage", "editMessageText":
		chatID := json.Number(params.Get("chat_id"))
		result = map[string]any{
			"message_id": id,
			"date":       0,
			"chat":       map[string]any{"id": chatID, "type": "private"},
			"text":       params.Get("text"),
		}
	case "copyMessage":
		result = map[string]any{"message_id": id}
	case "getFile":
		fileID := params.Get("file_id")
		result = map[string]any{
			"file_id":        fileID,
			"file_unique_id": "u-" + fileID,
			"file_size":      len(data),
			"file_path":      "documents/" + fileID,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

// readParams accepts multipart, JSON and urlencoded request bodies.
func readParams(r *http.Request) url.Values {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(32 << 20); err == nil && r.MultipartForm != nil {
			return url.Values(r.MultipartForm.Value)
		}
	case "application/json":
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			values := url.Values{}
			for k, v := range body {
				if s, ok := v.(string); ok {
					values.Set(k, s)
					continue
				}
				raw, _ := json.Marshal(v)
				values.Set(k, string(raw))
			}
			return values
		}
	default:
		if err := r.ParseForm(); err == nil {
			return r.Form
		}
	}
	return url.Values{}
}

// Calls returns the recorded calls for method, in arrival order.
func (f *fakeTelegram) Calls(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// SentTexts returns the text of every sendMessage call.
func (f *fakeTelegram) SentTexts() []string {
	var texts []string
	for _, c := range f.Calls("sendMessage") {
		texts = append(texts, c.Params.Get("text"))
	}
	return texts
}

// fakeAI records requests and returns canned answers.
type fakeAI struct {
	mu       sync.Mutex
	reply    string
	err      error
	history  []session.Turn
	prompts  []string
	files    []ai.LocalFile
	progress []int
	// fileExisted is true when the uploaded file was on disk during analysis.
	fileExisted bool
}

func (f *fakeAI) Provider() string { return "fake" }

func (f *fakeAI) GenerateReply(_ context.Context, history []session.Turn, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = history
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func (f *fakeAI) AnalyzeImage(_ context.Context, data []byte, mimeType, caption string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, fmt.Sprintf("image %s %d %s", mimeType, len(data), caption))
	return f.reply, f.err
}

func (f *fakeAI) AnalyzeFile(ctx context.Context, file ai.LocalFile, _ string, progress ai.ProgressFunc) (string, error) {
	f.mu.Lock()
	f.files = append(f.files, file)
	_, statErr := os.Stat(file.Path)
	f.fileExisted = statErr == nil
	f.mu.Unlock()

	for _, pct := range []int{0, 40} {
		if err := progress(ctx, pct); err != nil {
			return "", err
		}
		f.mu.Lock()
		f.progress = append(f.progress, pct)
		f.mu.Unlock()
	}
	return f.reply, f.err
}

func (f *fakeAI) Transcribe(context.Context, string, string) (string, error) {
	return f.reply, f.err
}

type testEnv struct {
	tg    *fakeTelegram
	bot   *bot.Bot
	deps  handlers.HandlerDeps
	ai    *fakeAI
	store database.Store
	db    *sqlx.DB
}

func newTestEnv(t *testing.T, client ai.Client) *testEnv {
	t.Helper()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	uploads := filepath.Join(dir, "uploads")
	require.NoError(t, os.Mkdir(uploads, 0o755))
	yaml := fmt.Sprintf("telegram:\n  token: %s\n  admin_user_id: 1\nupload:\n  temp_dir: %q\nrate_limit:\n  enabled: false\n", testToken, uploads)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))

	cfg, err := config.LoadConfig(cfgPath)
	require.NoError(t, err)

	db, err := database.NewDB(filepath.Join(dir, "test.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	store := database.NewStore(db, cfg.Database.MaxLogContent, nil)

	fake, _ := client.(*fakeAI)
	tg := newFakeTelegram(t)
	deps := handlers.HandlerDeps{
		Logger:      discardLogger(),
		Config:      cfg,
		Store:       store,
		AI:          client,
		Sessions:    session.NewStore(cfg.Session.MaxTurns, cfg.Session.MaxUsers, cfg.Session.TTL),
		Broadcaster: broadcast.New(store, config.BroadcastConfig{RatePerSecond: 1000, Burst: 10}, nil),
		Limiter:     handlers.NewUserLimiter(cfg.RateLimit),
		HTTPClient:  tg.srv.Client(),
	}
	return &testEnv{tg: tg, bot: tg.newBot(t), deps: deps, ai: fake, store: store, db: db}
}

// logged returns the content of every message log row of the given type.
func (e *testEnv) logged(t *testing.T, logType database.LogType) []string {
	t.Helper()
	var contents []string
	require.NoError(t, e.db.Select(&contents, "SELECT content FROM message_logs WHERE type = ? ORDER BY id", string(logType)))
	return contents
}

// runCommand runs a registered command with its middleware, outermost first,
// behind TrackUser as the bot does.
func (e *testEnv) runCommand(ctx context.Context, commands map[string]handlers.RegisteredHandler, update *models.Update) {
	name := strings.Fields(update.Message.Text)[0]
	h := commands[name].Handler
	mw := commands[name].Middleware
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	handlers.TrackUser(e.deps)(h)(ctx, e.bot, update)
}

// dispatch runs an update through the same chain the bot uses for non-command messages.
func (e *testEnv) dispatch(ctx context.Context, update *models.Update) {
	h := handlers.TrackUser(e.deps)(handlers.NewDefaultHandler(e.deps))
	h(ctx, e.bot, update)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
