package cluster

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mathieu-neron/nichescope/internal/model"
)

const (
	defaultMaxClusters = 8
	defaultMinSize     = 2
	minKeywordLen      = 3
	keywordsPerCluster = 5
)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"are": true, "was": true, "were": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "may": true,
	"might": true, "this": true, "that": true, "these": true, "those": true,
	"its": true, "you": true, "your": true, "they": true, "their": true,
	"how": true, "what": true, "when": true, "where": true, "why": true,
	"who": true, "not": true, "new": true, "just": true, "about": true,
	"out": true, "all": true, "more": true, "also": true, "than": true,
	"very": true, "can": true, "get": true, "got": true, "our": true,
	"into": true, "over": true, "after": true, "before": true, "here": true,
	"there": true, "then": true, "them": true, "only": true, "most": true,
	"best": true, "top": true, "video": true, "videos": true, "shorts": true,
	"official": true, "full": true, "part": true, "episode": true, "ever": true,
	// Portuguese and Spanish fillers that show up in creator titles.
	"com": true, "para": true, "que": true, "uma": true, "por": true,
	"como": true, "mais": true, "los": true, "las": true, "del": true,
}

// KeywordClusterer groups videos by the most frequent significant words in their
// titles. It is deterministic and needs no external service.
type KeywordClusterer struct {
	MaxClusters int
	MinSize     int
}

func NewKeywordClusterer() *KeywordClusterer {
	return &KeywordClusterer{MaxClusters: defaultMaxClusters, MinSize: defaultMinSize}
}

func (k *KeywordClusterer) Name() string { return "keyword" }

// Cluster assigns each video to the highest-ranked top keyword its title
// contains. Groups smaller than MinSize are dropped.
func (k *KeywordClusterer) Cluster(_ context.Context, videos []model.Video, specificity string) ([]model.NicheCluster, error) {
	maxClusters := k.MaxClusters
	if maxClusters <= 0 {
		maxClusters = defaultMaxClusters
	}
	minSize := k.MinSize
	if minSize <= 0 {
		minSize = defaultMinSize
	}

	tokens := make([]map[string]bool, len(videos))
	titles := make([]string, len(videos))
	for i, v := range videos {
		titles[i] = v.Title
		tokens[i] = tokenSet(v.Title)
	}

	// Rank more candidates than we need; many will end up below minSize.
	top := ExtractKeywords(titles, maxClusters*3)

	groups := make(map[string][]int, len(top))
	for i := range videos {
		for _, kw := range top {
			if tokens[i][kw] {
				groups[kw] = append(groups[kw], i)
				break
			}
		}
	}

	if !model.ValidSpecificity[specificity] {
		specificity = model.SpecificitySub
	}

	var clusters []model.NicheCluster
	for _, kw := range top {
		members := groups[kw]
		if len(members) < minSize {
			continue
		}

		memberTitles := make([]string, len(members))
		ids := make([]string, len(members))
		for j, idx := range members {
			memberTitles[j] = titles[idx]
			ids[j] = videos[idx].ID
		}

		keywords := ExtractKeywords(memberTitles, keywordsPerCluster)
		clusters = append(clusters, model.NicheCluster{
			Name:        clusterName(kw, keywords),
			Description: fmt.Sprintf("%d videos mentioning %q", len(members), kw),
			VideoIDs:    ids,
			Keywords:    keywords,
			Specificity: specificity,
		})
		if len(clusters) == maxClusters {
			break
		}
	}

	if len(clusters) == 0 {
		return nil, ErrNoClusters
	}
	return clusters, nil
}

// ExtractKeywords returns up to n significant words ranked by the number of
// titles they appear in, ties broken alphabetically.
func ExtractKeywords(titles []string, n int) []string {
	counts := make(map[string]int)
	for _, t := range titles {
		for w := range tokenSet(t) {
			counts[w]++
		}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > n {
		words = words[:n]
	}
	return words
}

// tokenSet returns the distinct significant lower-cased words of a title.
func tokenSet(title string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	set := make(map[string]bool, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) < minKeywordLen || stopwords[w] || isNumber(w) {
			continue
		}
		set[w] = true
	}
	return set
}

func isNumber(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// clusterName joins the anchor keyword with the strongest co-occurring keyword.
func clusterName(anchor string, keywords []string) string {
	name := capitalize(anchor)
	for _, kw := range keywords {
		if kw != anchor {
			return name + " " + capitalize(kw)
		}
	}
	return name
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
