package chunker

import (
	"math"
	"strings"
	"unicode"
)

type termVector map[string]float64

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true, "were": true,
	"with": true, "that": true, "this": true, "from": true, "has": true, "have": true,
	"not": true, "but": true, "its": true, "any": true, "all": true, "may": true,
	"shall": true, "will": true, "been": true, "which": true, "their": true, "such": true,
}

// splitSentences splits on terminal punctuation followed by whitespace and
// on line breaks.
func splitSentences(text string) []string {
	var (
		sentences []string
		current   strings.Builder
	)

	emit := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			emit()
			continue
		}
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				emit()
			}
		}
	}
	emit()

	return sentences
}

// termFrequencies counts content words in a sentence.
func termFrequencies(sentence string) termVector {
	v := make(termVector)
	for _, word := range strings.FieldsFunc(strings.ToLower(sentence), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(word) < 3 || stopWords[word] {
			continue
		}
		v[word]++
	}
	return v
}

func mergeVectors(vectors []termVector) termVector {
	merged := make(termVector)
	for _, v := range vectors {
		for term, n := range v {
			merged[term] += n
		}
	}
	return merged
}

// cosine returns the cosine similarity of two term vectors.
// A window without content words carries no evidence of a shift and scores 1.
func cosine(a, b termVector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 1
	}
	var dot, na, nb float64
	for term, x := range a {
		dot += x * b[term]
		na += x * x
	}
	for _, y := range b {
		nb += y * y
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// adaptiveThreshold returns mean - k*stddev of the gap similarities.
func adaptiveThreshold(sims []float64, k float64) float64 {
	if len(sims) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sims {
		sum += s
	}
	mean := sum / float64(len(sims))

	var variance float64
	for _, s := range sims {
		variance += (s - mean) * (s - mean)
	}
	stddev := math.Sqrt(variance / float64(len(sims)))

	return mean - k*stddev
}
