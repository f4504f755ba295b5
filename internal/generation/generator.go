// Package generation produces celebration drafts: a message written in one of
// the bot's voices and, optionally, one image per person.
package generation

import (
	"context"
	"fmt"
	"strings"

	"birthdaybot/internal/birthday"
	"birthdaybot/internal/external"
	"birthdaybot/internal/personality"
	"birthdaybot/internal/types"
)

// Config controls what the generator asks the model for.
type Config struct {
	DefaultPersonality personality.Voice
	EnableImages       bool
	// SkipAI forces the static fallback message and no images. Used for
	// local runs without an API key.
	SkipAI bool
}

// Generator builds drafts with a language model and falls back to the voice's
// static template when the model is unavailable.
type Generator struct {
	llm      external.LanguageModel
	selector *personality.Selector
	cfg      Config
	clock    types.Clock
	logger   types.Logger
}

// New creates a Generator. llm may be nil, which behaves like SkipAI.
func New(llm external.LanguageModel, selector *personality.Selector, cfg Config, clock types.Clock, logger types.Logger) *Generator {
	if selector == nil {
		selector = personality.NewSelector(nil)
	}
	if cfg.DefaultPersonality == "" {
		cfg.DefaultPersonality = personality.Standard
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Generator{llm: llm, selector: selector, cfg: cfg, clock: clock, logger: logger}
}

// Generate writes a draft for people. The returned PersonalityUsed is the
// concrete voice chosen, which differs from the request when it asks for the
// random voice. Model failures degrade to the fallback template; only a
// cancelled context or an empty batch return an error.
func (g *Generator) Generate(ctx context.Context, people []types.BirthdayPerson, opts types.GenerationOptions) (types.GeneratedContent, error) {
	if len(people) == 0 {
		return types.GeneratedContent{}, types.NewAppError(types.ErrCodeValidationNoPeople, "cannot generate a celebration for nobody", nil)
	}
	if err := ctx.Err(); err != nil {
		return types.GeneratedContent{}, err
	}

	voice := g.voice(opts.Personality)
	profile := personality.Lookup(voice)
	content := types.GeneratedContent{PersonalityUsed: string(voice)}

	msg, err := g.message(ctx, profile, people)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.GeneratedContent{}, ctxErr
		}
		g.logger.Warn("message generation failed, using fallback template",
			"personality", string(voice),
			"error", err.Error(),
		)
		msg = Fallback(profile, people)
	}
	content.Message = msg

	if opts.IncludeImages && g.cfg.EnableImages && g.aiEnabled() {
		images, err := g.images(ctx, profile, people)
		if err != nil {
			return types.GeneratedContent{}, err
		}
		content.Images = images
	}
	return content, nil
}

// Fallback renders the voice's static template for people.
func Fallback(profile personality.Profile, people []types.BirthdayPerson) string {
	return fmt.Sprintf(profile.Fallback, Mentions(people))
}

// Mentions renders "<@A>", "<@A> and <@B>" or "<@A>, <@B> and <@C>".
func Mentions(people []types.BirthdayPerson) string {
	tags := make([]string, len(people))
	for i, p := range people {
		tags[i] = fmt.Sprintf("<@%s>", p.UserID)
	}
	switch len(tags) {
	case 0:
		return ""
	case 1:
		return tags[0]
	}
	return strings.Join(tags[:len(tags)-1], ", ") + " and " + tags[len(tags)-1]
}

func (g *Generator) voice(requested string) personality.Voice {
	v := g.cfg.DefaultPersonality
	if requested != "" {
		parsed, err := personality.Parse(requested)
		if err != nil {
			g.logger.Warn("unknown personality requested, using default", "personality", requested)
		} else {
			v = parsed
		}
	}
	return g.selector.Resolve(v)
}

func (g *Generator) aiEnabled() bool {
	return g.llm != nil && !g.cfg.SkipAI
}

func (g *Generator) message(ctx context.Context, profile personality.Profile, people []types.BirthdayPerson) (string, error) {
	if !g.aiEnabled() {
		return Fallback(profile, people), nil
	}
	text, err := g.llm.Complete(ctx, []external.ChatMessage{
		{Role: "system", Content: systemPrompt(profile)},
		{Role: "user", Content: userPrompt(people, g.clock)},
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("model returned an empty message")
	}
	return text, nil
}

func (g *Generator) images(ctx context.Context, profile personality.Profile, people []types.BirthdayPerson) ([]types.ImageRef, error) {
	images := make([]types.ImageRef, 0, len(people))
	for _, p := range people {
		data, err := g.llm.GenerateImage(ctx, imagePrompt(profile, p))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			g.logger.Warn("image generation failed, continuing without it",
				"user_id", p.UserID,
				"error", err.Error(),
			)
			continue
		}
		images = append(images, types.ImageRef{
			Data:       data,
			MIMEType:   "image/png",
			Filename:   fmt.Sprintf("birthday_%s.png", p.UserID),
			PersonID:   p.UserID,
			PersonName: p.DisplayName(),
		})
	}
	return images, nil
}

func systemPrompt(profile personality.Profile) string {
	return fmt.Sprintf(
		"You are %s, %s. Your style is %s. Write a short Slack birthday message using Slack mrkdwn. "+
			"Mention every person with the exact <@ID> tag you are given, keep it under 120 words and add a few emoji.",
		profile.Name, profile.Description, profile.Style,
	)
}

func userPrompt(people []types.BirthdayPerson, clock types.Clock) string {
	now := clock.Now()
	var b strings.Builder
	if len(people) == 1 {
		b.WriteString("Write a birthday message for this person:\n")
	} else {
		fmt.Fprintf(&b, "Write one combined birthday message for these %d people who share a birthday:\n", len(people))
	}
	for _, p := range people {
		fmt.Fprintf(&b, "- <@%s> (%s), born on the %s, %s", p.UserID, p.DisplayName(), birthday.Words(p.Date, nil), birthday.StarSign(p.Date))
		if age, ok := birthday.AgeOn(p.Year, now); ok {
			fmt.Fprintf(&b, ", turning %d", age)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func imagePrompt(profile personality.Profile, p types.BirthdayPerson) string {
	return fmt.Sprintf("A birthday celebration illustration for %s. %s", p.DisplayName(), profile.ImageScene)
}
