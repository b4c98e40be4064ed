package config

import "time"

const (
	DefaultGeminiModel      = "gemini-2.5-flash"
	DefaultGroqBaseURL      = "https://api.groq.com/openai/v1"
	DefaultGroqModel        = "llama-3.3-70b-versatile"
	DefaultGroqVisionModel  = "meta-llama/llama-4-scout-17b-16e-instruct"
	DefaultGroqWhisperModel = "whisper-large-v3"

	DefaultMaxFileSize = 20 << 20 // Telegram bot API download limit
)

var defaults = map[string]any{
	"logger.level": "info",
	"logger.json":  true,

	"telegram.token":          "",
	"telegram.admin_user_id":  0,
	"telegram.webhook_url":    "",
	"telegram.webhook_secret": "",

	"ai.provider":           "",
	"ai.gemini_keys":        []string{},
	"ai.gemini_model":       DefaultGeminiModel,
	"ai.gemini_base_url":    "",
	"ai.groq_keys":          []string{},
	"ai.groq_base_url":      DefaultGroqBaseURL,
	"ai.groq_model":         DefaultGroqModel,
	"ai.groq_vision_model":  DefaultGroqVisionModel,
	"ai.groq_whisper_model": DefaultGroqWhisperModel,
	"ai.temperature":        0.7,
	"ai.system_instruction": "",
	"ai.request_timeout":    2 * time.Minute,
	"ai.poll_interval":      5 * time.Second,
	"ai.poll_timeout":       300 * time.Second,
	"ai.max_retries":        2,
	"ai.retry_delay":        2 * time.Second,
	"ai.max_pdf_chars":      60000,

	"database.url":             "tutorbot.db",
	"database.max_log_content": 1000,
	"database.max_open_conns":  10,
	"database.log_retention":   30 * 24 * time.Hour,

	"session.max_turns":             10,
	"session.max_users":             10000,
	"session.ttl":                   6 * time.Hour,
	"session.record_failed_replies": false,

	"upload.max_file_size": DefaultMaxFileSize,
	"upload.temp_dir":      "",

	"http.port":        8080,
	"http.admin_token": "",

	"broadcast.rate_per_second": 20.0,
	"broadcast.burst":           1,

	"rate_limit.enabled":             true,
	"rate_limit.requests_per_minute": 20.0,
	"rate_limit.burst":               5,

	"scheduler.tasks": map[string]any{
		"sql_maintenance": map[string]any{"enabled": true, "schedule": "0 0 4 * * 0"},
		"log_retention":   map[string]any{"enabled": true, "schedule": "0 30 3 * * *"},
		"session_sweep":   map[string]any{"enabled": true, "schedule": "0 */10 * * * *"},
	},

	"messages.welcome":             "📘 Welcome! Send me a question, a photo of an exercise, a PDF, an audio recording or a video and I'll explain it for you.",
	"messages.help":                "ℹ️ How to use me:\n• Write a question to chat.\n• Send a photo of an exercise or notes.\n• Send a PDF document to get a summary and explanations.\n• Send audio, a voice note or a video to get it explained.\n\n/reset clears our conversation.",
	"messages.history_reset":       "🔄 Conversation history has been cleared.",
	"messages.unauthorized":        "🚫 You are not authorized to use this command.",
	"messages.ai_unavailable":      "⚠️ The AI service is not configured right now. Please try again later.",
	"messages.ai_error":            "❌ The AI service returned an error. Please try again.",
	"messages.keys_exhausted":      "⏳ The AI service is busy right now. Please try again in a little while.",
	"messages.keys_exhausted_wait": "⏳ The AI service is busy right now. Please try again in %s.",
	"messages.timeout":             "⏱️ The AI took too long to answer. Please try again.",
	"messages.processing":          "📥 Processing your file...",
	"messages.processing_percent":  "📥 Processing your file... %d%%",
	"messages.processing_timeout":  "⏱️ Your file is taking too long to process. Please try a shorter or smaller file.",
	"messages.processing_failed":   "❌ The AI service could not process this file.",
	"messages.file_too_large":      "📦 This file is too large. The limit is %d MB.",
	"messages.unsupported_type":    "❌ This file type is not supported. Send a PDF, an image, audio or video.",
	"messages.vision_unavailable":  "🖼️ Image analysis is not available at the moment.",
	"messages.download_failed":     "❌ I couldn't download your file from Telegram. Please try again.",
	"messages.empty_reply":         "🤔 I couldn't produce an answer. Could you rephrase your question?",
	"messages.empty_transcript":    "🔇 I couldn't hear anything in this recording.",
	"messages.rate_limited":        "🐢 You're sending messages too quickly. Please wait a moment.",
	"messages.stats":               "📊 Statistics\nUsers: %d\nActive users: %d\nLogged messages: %d",
	"messages.broadcast_usage":     "Reply to a message with /broadcast, or write /broadcast followed by the text.",
	"messages.broadcast_started":   "📣 Broadcasting to %d users...",
	"messages.broadcast_done":      "✅ Broadcast finished: %d delivered, %d failed, %d deactivated.",
	"messages.logs_cleared":        "🧹 Deleted %d logged messages.",
	"messages.general_error":       "❌ An error occurred. Please try again later.",
}
