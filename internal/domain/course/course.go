package course

// CourseSummary is what the course service returns for one course. Only ID is
// interpreted here; the rest is passed through to clients.
type CourseSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Instructor  string `json:"instructor,omitempty"`
	Credits     int    `json:"credits,omitempty"`
}

// OrderByIDs returns summaries arranged in the order of ids. Summaries whose
// id was not requested keep their received order after the requested ones.
func OrderByIDs(ids []int64, summaries []CourseSummary) []CourseSummary {
	out := make([]CourseSummary, 0, len(summaries))
	byID := make(map[int64][]CourseSummary, len(summaries))
	for _, s := range summaries {
		byID[s.ID] = append(byID[s.ID], s)
	}
	for _, id := range ids {
		if found, ok := byID[id]; ok {
			out = append(out, found...)
			delete(byID, id)
		}
	}
	for _, s := range summaries {
		if _, left := byID[s.ID]; left {
			out = append(out, s)
		}
	}
	return out
}
