package service

import (
	"sort"
	"strings"
	"unicode"

	"github.com/utafrali/ReputationGo/internal/domain"
)

const minKeywordRunes = 3

var apostrophes = strings.NewReplacer("'", "", "’", "")

var stopwords = func() map[string]struct{} {
	words := strings.Fields(`
		a about above after again against all also am an and any are as at be because been before
		being below between both but by can could did do does doing down during each even ever
		every few for from further get got had has have having he her here hers herself him himself
		his how however i if in into is it its itself just let like made make many may me more most
		much must my myself never no nor not now of off on once one only or other our ours ourselves
		out over own really same she should since so some still such than that the their theirs them
		themselves then there these they this those though through thus to too under until up upon
		us very was way we well went were what when where which while who whom why will with within
		without would yet you your yours yourself yourselves
		dont didnt doesnt isnt wasnt werent wont cant couldnt wouldnt shouldnt ive youre theyre thats
		theres weve
	`)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}()

// tokenize lower-cases text and splits it into words of letters and digits.
// Apostrophes are dropped so contractions stay one token.
func tokenize(text string) []string {
	text = apostrophes.Replace(strings.ToLower(text))
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isKeyword(tok string) bool {
	if len([]rune(tok)) < minKeywordRunes {
		return false
	}
	if _, stop := stopwords[tok]; stop {
		return false
	}
	return strings.ContainsFunc(tok, unicode.IsLetter)
}

type keywordAcc struct {
	count        int
	sentimentSum float64
	sentimentN   int
}

// topKeywords ranks content keywords by occurrence count, then
// alphabetically, and keeps the first limit. Each keyword carries the mean
// sentiment of the reviews containing it.
func topKeywords(reviews []domain.Review, limit int) []domain.KeywordStat {
	acc := make(map[string]*keywordAcc)
	for i := range reviews {
		r := &reviews[i]
		inReview := make(map[string]bool)
		for _, tok := range tokenize(r.Content) {
			if !isKeyword(tok) {
				continue
			}
			a, ok := acc[tok]
			if !ok {
				a = &keywordAcc{}
				acc[tok] = a
			}
			a.count++
			if !inReview[tok] {
				inReview[tok] = true
				if r.Sentiment != nil {
					a.sentimentSum += r.Sentiment.Score
					a.sentimentN++
				}
			}
		}
	}

	stats := make([]domain.KeywordStat, 0, len(acc))
	for kw, a := range acc {
		ks := domain.KeywordStat{Keyword: kw, Count: a.count}
		if a.sentimentN > 0 {
			avg := a.sentimentSum / float64(a.sentimentN)
			ks.AverageSentiment = &avg
		}
		stats = append(stats, ks)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Keyword < stats[j].Keyword
	})
	if len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}
