package tasks

import "github.com/desertthunder/x2raindrop/internal/models"

// Link is one resolved destination link plus the note attached to it.
type Link struct {
	URL  string
	Note string
}

// ResolveLinks applies the link mode to a bookmark and returns the links to
// create, in order. A bookmark with no external URLs always resolves to its
// permalink, whatever the mode.
func ResolveLinks(b models.Bookmark, mode models.LinkMode, behavior models.BothBehavior) []Link {
	external := ""
	if len(b.ExternalURLs) > 0 {
		external = b.ExternalURLs[0]
	}

	switch mode {
	case models.LinkModeFirstExternalURL:
		if external == "" {
			return []Link{{URL: b.Permalink}}
		}
		return []Link{{URL: external, Note: "From: " + b.Permalink}}

	case models.LinkModeBoth:
		if external == "" {
			return []Link{{URL: b.Permalink}}
		}
		if behavior == models.BothTwoRaindrops {
			return []Link{
				{URL: external, Note: "From: " + b.Permalink},
				{URL: b.Permalink},
			}
		}
		return []Link{{URL: external, Note: "X Post: " + b.Permalink}}

	default:
		return []Link{{URL: b.Permalink}}
	}
}

// Targets resolves a bookmark into the raindrops to create for it under the
// given settings.
func Targets(b models.Bookmark, settings Settings) []models.RaindropTarget {
	links := ResolveLinks(b, settings.LinkMode, settings.BothBehavior)

	targets := make([]models.RaindropTarget, 0, len(links))
	for _, link := range links {
		targets = append(targets, models.RaindropTarget{
			Link:         link.URL,
			Title:        b.Title(),
			Excerpt:      b.Text,
			Note:         link.Note,
			Tags:         settings.Tags,
			CollectionID: settings.CollectionID,
		})
	}
	return targets
}
