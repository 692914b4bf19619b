package templates

// PreviewPageData contains the values rendered on a highlight preview page. HTML must
// already be sanitised.
type PreviewPageData struct {
	Title    string
	Seq      int64
	Status   string
	Category string
	Date     string
	Location string
	SDG      []string
	Images   []string
	Excerpt  string
	HTML     string
}
