package engine

import (
	"time"

	"github.com/AntoninoBonanno/DragDropAnnotate/internal/overlay"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/render"
)

// Options are the user-facing settings of an annotatable surface.
type Options struct {
	// Draggable selects the drag sources in browser hosts.
	Draggable       string               `yaml:"draggable" json:"draggable"`
	Hint            overlay.HintOptions  `yaml:"hint" json:"hint"`
	Popup           overlay.PopupOptions `yaml:"popup" json:"popup"`
	AnnotationStyle render.Style         `yaml:"annotationStyle" json:"annotationStyle"`
	Timing          Timing               `yaml:"timing" json:"timing"`
}

// Timing holds the overlay delays.
type Timing struct {
	PopupHideDelay time.Duration `yaml:"popupHideDelay" json:"popupHideDelay"`
	HintHideDelay  time.Duration `yaml:"hintHideDelay" json:"hintHideDelay"`
}

// DefaultOptions returns the stock settings.
func DefaultOptions() Options {
	return Options{
		Draggable:       ".draggable-annotation",
		Hint:            overlay.DefaultHintOptions(),
		Popup:           overlay.DefaultPopupOptions(),
		AnnotationStyle: render.DefaultStyle(),
		Timing: Timing{
			PopupHideDelay: overlay.DefaultPopupHideDelay,
			HintHideDelay:  overlay.DefaultHintHideDelay,
		},
	}
}
