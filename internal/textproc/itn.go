package textproc

import "strconv"

// Inverse text normalization for cardinal numbers: spoken number words
// are rewritten as digits ("twenty one" -> "21"). Covers 0..999999,
// which is what the recognition vocabulary can produce.

var numberUnits = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17,
	"eighteen": 18, "nineteen": 19,
}

var numberTens = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

var numberScales = map[string]int{
	"hundred": 100, "thousand": 1000,
}

func isNumberWord(w string) bool {
	if _, ok := numberUnits[w]; ok {
		return true
	}
	if _, ok := numberTens[w]; ok {
		return true
	}
	_, ok := numberScales[w]
	return ok
}

// rewriteNumbers replaces each maximal run of number words with its
// digit form. Non-number words pass through untouched.
func rewriteNumbers(words []string) []string {
	out := make([]string, 0, len(words))
	for i := 0; i < len(words); {
		if !isNumberWord(words[i]) {
			out = append(out, words[i])
			i++
			continue
		}
		j := i
		for j < len(words) && isNumberWord(words[j]) {
			j++
		}
		out = append(out, strconv.Itoa(parseNumber(words[i:j])))
		i = j
	}
	return out
}

// parseNumber evaluates a run of number words left to right: units and
// tens accumulate, scales multiply the current group.
func parseNumber(words []string) int {
	total, group := 0, 0
	for _, w := range words {
		switch {
		case numberScales[w] == 100:
			if group == 0 {
				group = 1
			}
			group *= 100
		case numberScales[w] == 1000:
			if group == 0 {
				group = 1
			}
			total += group * 1000
			group = 0
		default:
			if v, ok := numberUnits[w]; ok {
				group += v
			} else {
				group += numberTens[w]
			}
		}
	}
	return total + group
}
