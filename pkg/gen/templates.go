package gen

import (
	"strings"

	"feedpilot/pkg/proto"
	"feedpilot/pkg/utils"
)

// templateBucket pairs topical keywords with the comment templates used when
// the post text mentions one of them.
type templateBucket struct {
	keywords  []string
	templates []string
}

// Locale template sets. Every template must survive review on its own:
// at least 10 runes, three meaningful tokens, and no flagged vocabulary.
var localeTemplates = map[proto.Language]struct {
	buckets []templateBucket
	generic []string
}{
	proto.LangEnglish: {
		buckets: []templateBucket{
			{
				keywords: []string{"share", "sharing", "shared"},
				templates: []string{
					"Thanks for sharing this with everyone here.",
					"Appreciate you sharing this, good read.",
				},
			},
			{
				keywords: []string{"think", "thought", "opinion", "believe"},
				templates: []string{
					"Thought provoking take, curious where this conversation goes.",
					"Interesting way to frame it, gave me something to consider.",
				},
			},
		},
		generic: []string{
			"Thanks for posting this, really enjoyed the read.",
			"Interesting perspective, appreciate you putting it out there.",
			"Great post, this gave me something to think about.",
		},
	},
	proto.LangHebrew: {
		buckets: []templateBucket{
			{
				keywords: []string{"שיתוף", "לשתף", "משתף", "משתפת"},
				templates: []string{
					"תודה על השיתוף, מעריך את זה מאוד.",
					"שיתוף מעולה, תודה שהעלית את זה.",
				},
			},
			{
				keywords: []string{"מחשבה", "דעה", "חושב", "חושבת"},
				templates: []string{
					"מחשבה מעניינת, אשמח לעקוב אחרי הדיון.",
					"נקודה למחשבה, תודה שכתבת את זה.",
				},
			},
		},
		generic: []string{
			"תודה על הפוסט, מעניין מאוד לקרוא.",
			"נקודת מבט מעניינת, תודה שהעלית את זה.",
			"פוסט מצוין, נתן לי חומר למחשבה.",
		},
	},
}

// engagementPrompts are appended by the improve heuristic when feedback says
// the comment is too short.
var engagementPrompts = map[proto.Language]string{
	proto.LangEnglish: " Would love to hear what others make of this.",
	proto.LangHebrew:  " אשמח לשמוע מה אחרים חושבים על זה.",
}

// fallbackComment deterministically selects a template for the item's
// language: a topical bucket when the post mentions one of its keywords,
// otherwise a uniform pick from the generic set.
func fallbackComment(item *proto.ContentItem, rand *utils.Rand) (string, bool) {
	set, supported := localeTemplates[item.Language]
	if !supported {
		return "", false
	}

	lower := strings.ToLower(item.Text)
	for _, bucket := range set.buckets {
		for _, keyword := range bucket.keywords {
			if strings.Contains(lower, keyword) {
				return bucket.templates[rand.Intn(len(bucket.templates))], true
			}
		}
	}
	return set.generic[rand.Intn(len(set.generic))], true
}
