package persist

import "github.com/KasiaMirowska/shift-track/internal/publication"

func publicationHint(slug string) publication.Hint {
	return publication.Hint{Slug: slug, Name: slug, Domain: slug + ".com"}
}
