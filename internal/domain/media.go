package domain

// MediaState holds a call participant's outgoing media flags.
type MediaState struct {
	Audio bool `json:"audio"`
	Video bool `json:"video"`
}
