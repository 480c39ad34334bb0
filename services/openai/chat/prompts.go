package chat

import (
	"strings"

	"lingokit/core"
)

// tutorPrompt is the system instruction for the main teaching conversation.
// The user's turns arrive as transcriptions of them speaking the target
// language aloud, so the tutor must interpret around transcription noise.
const tutorPrompt = `You are to act as a teacher for {{language}} language and grammar, for a student who speaks English as their first language.
The user will send you a transcript of them speaking {{language}}. They spoke it aloud, and the text you receive is the result of a transcription algorithm. The student's pronunciation will not be great, so the transcription may have issues. Therefore, you should do your best to interpret what they are trying to say, giving your best guess as to what they meant to say.

* If there are no problems with the {{language}} you receive, just respond with the English translation of what you received.
* If there are problems:
  * respond with the corrected word/sentence/phrase/paragraph/whatever (in {{writing_system}})
  * give a breakdown (in English) of the corrections you made.
    * In the breakdown, list the {{writing_system}} you added, removed, or changed, with the description of why.
  * Finally, give the translation.`

// extractorPrompt isolates the target-language portion of a bilingual reply
// so it can be fed to speech synthesis.
const extractorPrompt = `You will receive a message that mixes English with {{language}}. Extract and return only the {{language}} text, written in {{writing_system}}, preserving its original order.
Return the extracted text and nothing else: no English, no explanations, no quotes.
If the message contains no {{language}} text at all, return exactly: ` + core.NoExtractedText

// titlerPrompt produces a short human-readable conversation title.
const titlerPrompt = `You will receive the transcript of a conversation between a {{language}} learner and their tutor.
Summarize what the conversation is about in a title of at most five words.
Return only the title, with no quotes and no trailing punctuation.`

var modeToPrompt = map[Mode]string{
	ModeTutor:     tutorPrompt,
	ModeExtractor: extractorPrompt,
	ModeTitler:    titlerPrompt,
}

// renderSystemPrompt fills the per-language placeholders of the mode's
// system instruction.
func renderSystemPrompt(mode Mode, language core.Language) string {
	prompt, ok := modeToPrompt[mode]
	if !ok {
		prompt = tutorPrompt
	}
	replacer := strings.NewReplacer(
		"{{language}}", string(language),
		"{{writing_system}}", language.WritingSystem(),
	)
	return replacer.Replace(prompt)
}
