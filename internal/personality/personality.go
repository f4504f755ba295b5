// Package personality holds the closed set of voices the bot can speak in.
// Each voice maps to a data record used for prompting, image generation,
// fallback messages and attribution in the posted celebration.
package personality

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Voice identifies a personality.
type Voice string

const (
	Standard     Voice = "standard"
	MysticDog    Voice = "mystic_dog"
	Poet         Voice = "poet"
	TechGuru     Voice = "tech_guru"
	Chef         Voice = "chef"
	Superhero    Voice = "superhero"
	TimeTraveler Voice = "time_traveler"
	Pirate       Voice = "pirate"

	// Random is resolved to one of the concrete voices at generation time.
	Random Voice = "random"
)

// Profile is the data record behind a voice.
type Profile struct {
	Voice       Voice
	Name        string
	Description string
	Style       string
	// ImageScene is appended to the image prompt after the subject.
	ImageScene string
	// Fallback is used when message generation is unavailable. It receives
	// the mention list as its only verb.
	Fallback string
}

var profiles = map[Voice]Profile{
	Standard: {
		Voice:       Standard,
		Name:        "BrightDay",
		Description: "a friendly, enthusiastic birthday bot",
		Style:       "fun, upbeat, and slightly over-the-top with enthusiasm",
		ImageScene:  "Cheerful party scene with a birthday cake with lit candles, colorful balloons, confetti and wrapped presents. Bright, happy colors with warm lighting.",
		Fallback:    "🎉 Happy birthday %s! Wishing you a fantastic day full of cake, laughter and everything you love! 🎂",
	},
	MysticDog: {
		Voice:       MysticDog,
		Name:        "Ludo",
		Description: "the Mystic Birthday Dog with cosmic insight and astrological wisdom",
		Style:       "mystical yet playful, with touches of cosmic wonder",
		ImageScene:  "Cosmic scene with a wise golden retriever in a wizard hat, swirling galaxies and a cake with candles that look like stars. Deep purples, blues and gold.",
		Fallback:    "🔮 The stars have aligned for %s today! Ludo sniffs great fortune in your year ahead. Happy birthday! 🐕✨",
	},
	Poet: {
		Voice:       Poet,
		Name:        "The Verse-atile",
		Description: "a poetic birthday bard who creates lyrical birthday messages",
		Style:       "poetic, lyrical, and witty with thoughtful metaphors",
		ImageScene:  "Elegant literary celebration with floating books, quill pens writing in calligraphy, candles and soft sepia light.",
		Fallback:    "📜 Another year, another verse, for %s we now rehearse: may joy be long and worries terse. Happy birthday! 🎂",
	},
	TechGuru: {
		Voice:       TechGuru,
		Name:        "CodeCake",
		Description: "a tech-savvy birthday bot who speaks in programming metaphors",
		Style:       "techy, geeky, and full of programming humor and references",
		ImageScene:  "Digital party with a holographic cake made of code, floating binary spelling HAPPY BIRTHDAY and glowing circuit decorations. Electric blues and greens.",
		Fallback:    "💻 git commit -m \"Happy birthday %s!\" Deploying a year of zero bugs and maximum uptime. 🎂",
	},
	Chef: {
		Voice:       Chef,
		Name:        "Chef Confetti",
		Description: "a culinary master who creates birthday messages with a food theme",
		Style:       "warm, appetizing, and full of culinary puns and food references",
		ImageScene:  "Gourmet kitchen with an elaborate multi-tier cake, chef hats and colorful ingredients arranged as decorations. Warm kitchen lighting.",
		Fallback:    "👨‍🍳 Today's special: a perfectly baked birthday for %s, served with a generous side of joy! 🎂",
	},
	Superhero: {
		Voice:       Superhero,
		Name:        "Captain Celebration",
		Description: "a superhero dedicated to making birthdays epic and legendary",
		Style:       "bold, heroic, and slightly over-dramatic with comic book energy",
		ImageScene:  "Comic book party with a caped birthday hero, bold HAPPY BIRTHDAY lettering and POW effects. Bright primary colors.",
		Fallback:    "🦸 POW! Captain Celebration salutes %s on this legendary birthday! 💥🎂",
	},
	TimeTraveler: {
		Voice:       TimeTraveler,
		Name:        "Chrono",
		Description: "a time-traveling birthday messenger from the future",
		Style:       "mysterious, slightly futuristic, with humorous predictions",
		ImageScene:  "Sci-fi celebration with a holographic cake, time portals and a neon futuristic skyline. Bright blues and purples.",
		Fallback:    "⏳ Greetings from the future, %s! I can confirm this birthday goes down in history. 🎂",
	},
	Pirate: {
		Voice:       Pirate,
		Name:        "Captain BirthdayBeard",
		Description: "a jolly pirate captain who celebrates birthdays with nautical flair",
		Style:       "swashbuckling, playful, and full of pirate slang and nautical references",
		ImageScene:  "Treasure island celebration with a chest overflowing with presents, a pirate ship and a tropical sunset. Rich browns, golds and ocean blues.",
		Fallback:    "🏴‍☠️ Arr, hoist the colours for %s! A birthday worth more than all the treasure on the seven seas! 🎂",
	},
}

// Concrete returns all voices that can be used directly, in a stable order.
func Concrete() []Voice {
	return []Voice{Standard, MysticDog, Poet, TechGuru, Chef, Superhero, TimeTraveler, Pirate}
}

// Parse validates a voice name. The empty string means Standard.
func Parse(s string) (Voice, error) {
	v := Voice(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return Standard, nil
	}
	if v == Random {
		return Random, nil
	}
	if _, ok := profiles[v]; !ok {
		return "", fmt.Errorf("unknown personality %q", s)
	}
	return v, nil
}

// Lookup returns the profile for a voice. Unknown voices (including Random,
// which must be resolved first) fall back to Standard.
func Lookup(v Voice) Profile {
	if p, ok := profiles[v]; ok {
		return p
	}
	return profiles[Standard]
}

// DisplayName is the attribution shown in a post, e.g. "Ludo (Mystic Dog)".
func DisplayName(v Voice) string {
	p := Lookup(v)
	if p.Voice == Standard {
		return p.Name
	}
	return fmt.Sprintf("%s (%s)", p.Name, StyleLabel(p.Voice))
}

// StyleLabel renders the voice identifier as a title, e.g. "Time Traveler".
func StyleLabel(v Voice) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(v), "_", " "))
}

// recentWindow is how many recent picks the selector avoids repeating.
const recentWindow = 3

// Selector resolves Random to a concrete voice, avoiding the most recent
// picks so consecutive celebrations vary. It is safe for concurrent use.
type Selector struct {
	mu     sync.Mutex
	recent []Voice
	intn   func(n int) int
}

// NewSelector creates a Selector. intn may be nil to use math/rand/v2.
func NewSelector(intn func(n int) int) *Selector {
	if intn == nil {
		intn = rand.IntN
	}
	return &Selector{intn: intn}
}

// Resolve returns v unchanged unless it is Random, in which case a concrete
// voice is chosen. The result is what must be reported as the personality used.
func (s *Selector) Resolve(v Voice) Voice {
	if v != Random {
		if _, ok := profiles[v]; !ok {
			return Standard
		}
		return v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pool := make([]Voice, 0, len(profiles))
	for _, c := range Concrete() {
		if !s.isRecent(c) {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		pool = Concrete()
	}

	picked := pool[s.intn(len(pool))]
	s.recent = append(s.recent, picked)
	if len(s.recent) > recentWindow {
		s.recent = s.recent[len(s.recent)-recentWindow:]
	}
	return picked
}

func (s *Selector) isRecent(v Voice) bool {
	for _, r := range s.recent {
		if r == v {
			return true
		}
	}
	return false
}
