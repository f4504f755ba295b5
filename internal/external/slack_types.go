package external

// --- Slack Block Kit payload types ---

// SlackMessage is a chat.postMessage request. Text is always sent: it is the
// notification and accessibility fallback when Blocks are present, and the
// whole message when they are not.
type SlackMessage struct {
	Channel  string       `json:"channel"`
	Text     string       `json:"text"`
	Blocks   []SlackBlock `json:"blocks,omitempty"`
	ThreadTS string       `json:"thread_ts,omitempty"`
}

// SlackBlock is one layout block. Only the fields used by celebration posts
// are modelled.
type SlackBlock struct {
	Type      string        `json:"type"`
	Text      *SlackText    `json:"text,omitempty"`
	Fields    []*SlackText  `json:"fields,omitempty"`
	Elements  []*SlackText  `json:"elements,omitempty"`
	SlackFile *SlackFileRef `json:"slack_file,omitempty"` // image blocks
	AltText   string        `json:"alt_text,omitempty"`   // image blocks
	Title     *SlackText    `json:"title,omitempty"`      // image blocks
}

// SlackText is a text composition object.
type SlackText struct {
	Type  string `json:"type"` // "plain_text" or "mrkdwn"
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// SlackFileRef points an image block at a file uploaded to the workspace.
type SlackFileRef struct {
	ID string `json:"id"`
}

// UploadedFile is a completed external upload.
type UploadedFile struct {
	ID       string
	Title    string
	PersonID string
}

// PlainText is shorthand for a plain_text object with emoji rendering on.
func PlainText(s string) *SlackText {
	return &SlackText{Type: "plain_text", Text: s, Emoji: true}
}

// Markdown is shorthand for a mrkdwn text object.
func Markdown(s string) *SlackText {
	return &SlackText{Type: "mrkdwn", Text: s}
}
