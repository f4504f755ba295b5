package celebration

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"birthdaybot/internal/birthday"
	"birthdaybot/internal/external"
	"birthdaybot/internal/personality"
	"birthdaybot/internal/types"
)

// Block Kit limits enforced before sending. Slack counts characters, not
// bytes.
const (
	maxHeaderText  = 150
	maxSectionText = 3000
	maxFields      = 10
)

// BuildBlocks lays out one celebration post. A single person gets the
// individual layout; more people get the consolidated layout with a count
// header. Uploaded files are embedded as image blocks in upload order.
func BuildBlocks(content types.GeneratedContent, people []types.BirthdayPerson, files []external.UploadedFile, ref time.Time) ([]external.SlackBlock, error) {
	if len(people) == 0 {
		return nil, fmt.Errorf("blocks: no people to celebrate")
	}
	if strings.TrimSpace(content.Message) == "" {
		return nil, fmt.Errorf("blocks: message is empty")
	}
	if n := utf8.RuneCountInString(content.Message); n > maxSectionText {
		return nil, fmt.Errorf("blocks: message is %d characters, section limit is %d", n, maxSectionText)
	}

	header := headerText(len(people))
	if utf8.RuneCountInString(header) > maxHeaderText {
		return nil, fmt.Errorf("blocks: header exceeds %d characters", maxHeaderText)
	}

	blocks := []external.SlackBlock{
		{Type: "header", Text: external.PlainText(header)},
		{Type: "section", Text: external.Markdown(content.Message)},
	}

	names := make(map[string]string, len(people))
	for _, p := range people {
		if p.UserID == "" {
			return nil, fmt.Errorf("blocks: person %q has no user id", p.Username)
		}
		names[p.UserID] = p.DisplayName()
	}

	for _, f := range files {
		if f.ID == "" {
			continue
		}
		name, ok := names[f.PersonID]
		if !ok {
			name = "Birthday Person"
		}
		blocks = append(blocks, external.SlackBlock{
			Type:      "image",
			SlackFile: &external.SlackFileRef{ID: f.ID},
			AltText:   fmt.Sprintf("Birthday celebration image for %s", name),
			Title:     external.PlainText(imageTitle(f.Title, name, len(people))),
		})
	}

	fields := make([]*external.SlackText, 0, len(people))
	for _, p := range people {
		fields = append(fields, external.Markdown(personField(p, ref)))
	}
	for start := 0; start < len(fields); start += maxFields {
		end := min(start+maxFields, len(fields))
		blocks = append(blocks, external.SlackBlock{Type: "section", Fields: fields[start:end]})
	}

	voice := personality.Voice(content.PersonalityUsed)
	blocks = append(blocks, external.SlackBlock{
		Type: "context",
		Elements: []*external.SlackText{
			external.Markdown(fmt.Sprintf("✨ _Brought to you by %s_", personality.DisplayName(voice))),
		},
	})

	return blocks, nil
}

// FallbackText is the notification text sent alongside the blocks.
func FallbackText(people []types.BirthdayPerson) string {
	switch len(people) {
	case 0:
		return "🎂 Happy Birthday!"
	case 1:
		return fmt.Sprintf("🎂 Happy Birthday %s!", people[0].DisplayName())
	}
	names := make([]string, len(people))
	for i, p := range people {
		names[i] = p.DisplayName()
	}
	return fmt.Sprintf("🎂 Happy Birthday to %s!", strings.Join(names, ", "))
}

func headerText(count int) string {
	switch count {
	case 1:
		return "🎂 Birthday Celebration"
	case 2:
		return "🎉 Birthday Twins!"
	case 3:
		return "🎊 Birthday Triplets!"
	}
	return fmt.Sprintf("🎂 %d Birthday Celebrations!", count)
}

func imageTitle(title, name string, count int) string {
	if title != "" {
		return title
	}
	if count == 1 {
		return fmt.Sprintf("🎂 %s's Birthday Celebration", name)
	}
	return fmt.Sprintf("🎂 %s's Birthday", name)
}

func personField(p types.BirthdayPerson, ref time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*<@%s>*\n%s", p.UserID, birthday.StarSign(p.Date))
	if age, ok := birthday.AgeOn(p.Year, ref); ok {
		fmt.Fprintf(&b, " • %d years", age)
	}
	return b.String()
}
