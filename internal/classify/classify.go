// Package classify assigns a topic label to a document from the
// Government Code sections it cites. The Political Reform Act is
// organized into distinct section ranges per subject area, so a
// plurality vote over cited sections is a reliable first-pass signal.
package classify

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/civic-archive/fppc-cli/internal/model"
)

const methodCitationBased = "heuristic:citation_based"

type sectionRange struct {
	low, high int // inclusive
}

// Act section ranges per topic. Ranges within a topic may overlap
// (87200-87220 sits inside 87100-87500); each citation still counts
// once because matching stops at the first containing topic.
var topicRanges = map[model.TopicLabel][]sectionRange{
	model.TopicConflicts: {
		{87100, 87500}, // disqualification
		{87200, 87220}, // economic disclosure (SEI)
		{87300, 87315}, // designated employees
	},
	model.TopicCampaign: {
		{84100, 84600}, // campaign reporting
		{85100, 85800}, // contributions and expenditures
		{89500, 89600}, // mass mailings
	},
	model.TopicLobbying: {
		{86100, 86400}, // lobbyist registration and reporting
	},
}

var reBaseSection = regexp.MustCompile(`^(\d+)`)

// Result is the classification outcome together with the per-topic
// tallies that produced it.
type Result struct {
	Classification model.Classification
	SectionCounts  map[model.TopicLabel]int
}

// ByCitations classifies a document from its statute citations. Ties
// break deterministically toward the alphabetically first topic. A nil
// Topic means there was nothing to classify; TopicOther means the
// citations parsed but none fell in a known range.
func ByCitations(statutes []string) Result {
	res := Result{
		Classification: model.Classification{Method: methodCitationBased},
		SectionCounts:  map[model.TopicLabel]int{},
	}
	if len(statutes) == 0 {
		return res
	}

	counts := map[model.TopicLabel]int{
		model.TopicConflicts: 0,
		model.TopicCampaign:  0,
		model.TopicLobbying:  0,
		model.TopicOther:     0,
	}
	valid := 0
	for _, c := range statutes {
		n, ok := baseSection(c)
		if !ok {
			continue
		}
		counts[classifySection(n)]++
		valid++
	}
	res.SectionCounts = counts
	if valid == 0 {
		return res
	}

	topics := make([]model.TopicLabel, 0, len(counts))
	for t := range counts {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i] < topics[j] })

	primary := topics[0]
	for _, t := range topics[1:] {
		if counts[t] > counts[primary] {
			primary = t
		}
	}

	res.Classification.Topic = &primary
	res.Classification.Confidence = float64(counts[primary]) / float64(valid)
	return res
}

func baseSection(citation string) (int, bool) {
	m := reBaseSection.FindString(strings.TrimSpace(citation))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

func classifySection(n int) model.TopicLabel {
	// Iterate topics in a fixed order so overlapping ranges resolve
	// the same way every run.
	for _, t := range []model.TopicLabel{model.TopicCampaign, model.TopicConflicts, model.TopicLobbying} {
		for _, r := range topicRanges[t] {
			if n >= r.low && n <= r.high {
				return t
			}
		}
	}
	return model.TopicOther
}
