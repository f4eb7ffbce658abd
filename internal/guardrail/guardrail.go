// Package guardrail screens free-text agent queries before they reach
// scoring. Evaluate is pure: the same raw text always yields the same
// Decision.
package guardrail

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Code is the machine-readable rejection reason. It is for telemetry; the
// end user only ever sees HelpMessage.
type Code string

const (
	CodeNone            Code = ""
	CodeEmpty           Code = "empty"
	CodeTooShort        Code = "too_short"
	CodeGibberish       Code = "gibberish"
	CodePromptInjection Code = "prompt_injection"
	CodeOutOfScope      Code = "out_of_scope"
)

// HelpMessage is shown for every rejection, whatever rule tripped.
const HelpMessage = "I can only help you find people to meet on campus. " +
	"Try describing who you're looking for, like \"someone who loves hiking and live music\"."

const (
	minQueryRunes      = 3
	repeatRunThreshold = 7
	minAlphaRatio      = 0.25
	maxNonAlphaRatio   = 0.65
	noVowelMinLetters  = 5
)

// Decision is the terminal outcome for one query.
type Decision struct {
	Allowed         bool   `json:"allowed"`
	Code            Code   `json:"code,omitempty"`
	NormalizedQuery string `json:"normalized_query"`
	UserMessage     string `json:"user_message,omitempty"`
}

var zeroWidth = strings.NewReplacer(
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\u2060", "",
	"\ufeff", "",
)

// Normalize strips zero-width characters, collapses whitespace and trims.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(zeroWidth.Replace(raw)), " ")
}

// Evaluate runs the checks in order and stops at the first rejection.
//
// Behavior:
//   - empty, then too_short (< 3 runes)
//   - gibberish
//   - prompt_injection
//   - out_of_scope, unless a dating-context hint is also present
//
// Example:
//
//	guardrail.Evaluate("someone funny and into music") // Allowed
//	guardrail.Evaluate("asdkj123$$%")                  // CodeGibberish
func Evaluate(raw string) Decision {
	q := Normalize(raw)

	switch {
	case q == "":
		return reject(q, CodeEmpty)
	case utf8.RuneCountInString(q) < minQueryRunes:
		return reject(q, CodeTooShort)
	case IsGibberish(q):
		return reject(q, CodeGibberish)
	case IsPromptInjection(q):
		return reject(q, CodePromptInjection)
	case IsOutOfScope(q):
		return reject(q, CodeOutOfScope)
	}
	return Decision{Allowed: true, NormalizedQuery: q}
}

func reject(q string, code Code) Decision {
	return Decision{Allowed: false, Code: code, NormalizedQuery: q, UserMessage: HelpMessage}
}

// IsGibberish flags text that carries no describable intent.
//
// Rejected when any holds:
//   - the text (spaces ignored) is one character repeated 7+ times
//   - fewer than 25% of characters are letters
//   - more than 65% are digits or symbols
//   - it is a single token mixing letters, digits and symbols
//   - it has 5+ latin letters and not one vowel
func IsGibberish(q string) bool {
	var (
		total, letters, digits, symbols int
		latin, vowels                   int
		first                           rune
		allSame                         = true
	)
	for _, r := range q {
		if unicode.IsSpace(r) {
			continue
		}
		if total == 0 {
			first = r
		} else if unicode.ToLower(r) != unicode.ToLower(first) {
			allSame = false
		}
		total++

		switch {
		case unicode.IsLetter(r):
			letters++
			if r < unicode.MaxASCII {
				latin++
				if strings.ContainsRune("aeiouyAEIOUY", r) {
					vowels++
				}
			}
		case unicode.IsDigit(r):
			digits++
		default:
			symbols++
		}
	}
	if total == 0 {
		return false
	}

	if allSame && total >= repeatRunThreshold {
		return true
	}
	if float64(letters)/float64(total) < minAlphaRatio {
		return true
	}
	if float64(digits+symbols)/float64(total) > maxNonAlphaRatio {
		return true
	}
	if !strings.ContainsRune(q, ' ') && letters > 0 && digits > 0 && symbols > 0 {
		return true
	}
	if latin >= noVowelMinLetters && latin == letters && vowels == 0 {
		return true
	}
	return false
}

var injectionPatterns = compileAll(
	// instruction override
	`\b(ignore|disregard|forget|override|bypass|skip)\b.{0,40}\b(previous|prior|above|earlier|all|any|your|the|these|those)\b.{0,20}\b(instructions?|prompts?|rules?|directions?|guidelines?|directives?)\b`,
	`\bnew (instructions?|rules?)\s*:`,
	// system / developer prompt disclosure
	`\b(reveal|show|print|display|repeat|leak|output|dump|tell me|what(?:'s| is| are))\b.{0,40}\b(system|developer|hidden|initial|original|internal)\s+(prompts?|instructions?|messages?|rules?)\b`,
	`\bsystem prompt\b`,
	// jailbreak
	`\b(jailbreak|jail break|dan mode|developer mode|do anything now|god mode)\b`,
	`\b(act|behave|respond) as (an? )?(unrestricted|unfiltered|uncensored|evil)\b`,
	`\bpretend (you are|you're|to be) (not )?(an? )?(ai|assistant|chatbot|language model)\b`,
	// credential / secret extraction
	`\b(give|show|reveal|send|leak|dump|print|share|list|what(?:'s| is| are))\b.{0,40}\b(api[\s_-]?keys?|passwords?|secrets?|access[\s_-]?tokens?|credentials?|private[\s_-]?keys?|env(ironment)? var(iable)?s?|database url|connection string)\b`,
	// SQL injection shapes
	`\bunion\s+(all\s+)?select\b`,
	`\b(drop|truncate|alter)\s+table\b`,
	`\bdelete\s+from\b`,
	`\binsert\s+into\b`,
	`\bselect\s+\*\s+from\b`,
	`\bselect\b.{0,40}\bfrom\b.{0,40}\bwhere\b`,
	`'\s*or\s*'?\d+'?\s*=\s*'?\d+`,
	`\bor\s+1\s*=\s*1\b`,
	`;\s*--`,
	`\bupdate\s+\w+\s+set\b`,
	// script / markup injection
	`<\s*/?\s*(script|iframe|object|embed|svg|img|style)\b`,
	`javascript\s*:`,
	`\bon(error|load|click|mouseover)\s*=`,
	`<\|(im_start|im_end|endoftext|system)\|>`,
	`\{\{.*\}\}`,
)

// IsPromptInjection reports whether q matches any injection pattern.
func IsPromptInjection(q string) bool {
	return matchAny(injectionPatterns, q)
}

var outOfScopePatterns = compileAll(
	// technical
	`\b(write|fix|debug|compile|refactor|deploy)\b.{0,30}\b(code|script|program|function|app|bug|query|api)\b`,
	`\b(python|javascript|typescript|java|golang|html|css|sql|kubernetes|docker|linux|regex)\b`,
	`\b(stack ?trace|segfault|null pointer|syntax error|algorithm)\b`,
	// financial
	`\b(stocks?|crypto(currency)?|bitcoin|ethereum|forex|invest(ing|ment)?|trading|loan|mortgage|tax(es)?|dividends?)\b`,
	// academic cheating
	`\b(homework|assignment|essay|thesis|dissertation|term paper|lab report|exam answers?|past papers?|cat answers?)\b`,
	`\b(write|do|finish|solve)\b.{0,15}\b(my|this|the)\b.{0,15}\b(exam|test|quiz|paper|coursework|project)\b`,
	// general off-topic
	`\b(weather|forecast|recipe|news|headlines|translate|summari[sz]e|capital of|who won|lottery|horoscope)\b`,
)

var datingHints = compileAll(
	`\b(date|dates|dating|match|matches|partner|girlfriend|boyfriend|bae|crush|relationship|romantic|romance|single|flirt)\b`,
	`\b(someone|somebody|anyone|person|people|guy|guys|girl|girls|man|men|woman|women|lady|ladies|dude)\b`,
	`\b(looking for|into|loves?|likes?|enjoys?|passionate about|interested in|who (is|are)|vibes?|hang ?out|meet|chill|fun|cute|funny)\b`,
)

// IsOutOfScope reports whether q is off-topic for a dating search. A
// dating-context hint anywhere in the text overrides the off-topic signal.
func IsOutOfScope(q string) bool {
	if !matchAny(outOfScopePatterns, q) {
		return false
	}
	return !matchAny(datingHints, q)
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
