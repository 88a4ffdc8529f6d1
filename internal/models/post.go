package models

// GeneratedPost is a draft produced during a single pipeline run.
type GeneratedPost struct {
	Text      string `json:"text"`
	ImagePath string `json:"image_path,omitempty"`
}

// Published identifies a status created on the social network.
type Published struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
