package ai

// DefaultSystemInstruction frames every conversation as a tutoring session.
const DefaultSystemInstruction = `You are a patient study assistant and tutor on Telegram. Explain concepts clearly and step by step, adapt to the student's level, and reply in the language the student writes in.

When solving exercises, show the reasoning and not only the final answer. Prefer short paragraphs and plain lists, because replies are shown as Telegram messages without rich formatting.`

// ImagePrompt is sent alongside a photo or image document.
const ImagePrompt = `Study the attached image. If it contains exercises, questions or notes, read them carefully, explain the underlying concepts and solve each exercise step by step. If it is a diagram or figure, describe what it shows and what a student should learn from it.`

// DocumentPrompt is sent alongside an uploaded PDF.
const DocumentPrompt = `Study the attached document. Start with a short summary of its subject, then explain its main ideas section by section. Solve any exercises or questions it contains step by step, and finish with the key points a student should remember.`

// AudioPrompt is sent alongside an audio recording.
const AudioPrompt = `Listen to the attached recording. Summarize what is said, explain the concepts it covers as a tutor would, and answer any questions asked in it.`

// VideoPrompt is sent alongside a video.
const VideoPrompt = `Watch the attached video. Summarize its content, explain the concepts it teaches step by step, and list the key points a student should remember.`

// TranscriptPrompt wraps a transcript produced from an audio file when the
// provider cannot read audio directly.
const TranscriptPrompt = `The following is a transcript of an audio recording sent by a student. Summarize it, explain the concepts it covers as a tutor would, and answer any questions asked in it.

Transcript:
`

// ExtractedTextPrompt wraps text extracted locally from a PDF when the provider
// cannot read documents directly.
const ExtractedTextPrompt = `The following text was extracted from a PDF document sent by a student. Start with a short summary of its subject, explain its main ideas, and solve any exercises it contains step by step.

Document text:
`

// CaptionHeader introduces the student's own question about a file.
const CaptionHeader = "The student added this request: "
