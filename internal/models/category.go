package models

import "fmt"

type CategoryID string

const (
	CategoryCrime    CategoryID = "crime"
	CategoryMedical  CategoryID = "medical"
	CategoryFire     CategoryID = "fire"
	CategoryAccident CategoryID = "accident"
	CategoryDisaster CategoryID = "disaster"
	CategoryHome     CategoryID = "home"
)

var categoryLabels = map[CategoryID]string{
	CategoryCrime:    "Crime/Threat",
	CategoryMedical:  "Medical Emergency",
	CategoryFire:     "Fire",
	CategoryAccident: "Accident",
	CategoryDisaster: "Natural Disaster",
	CategoryHome:     "Home Emergency",
}

// Categories возвращает все известные категории в порядке отображения
func Categories() []CategoryID {
	return []CategoryID{
		CategoryCrime,
		CategoryMedical,
		CategoryFire,
		CategoryAccident,
		CategoryDisaster,
		CategoryHome,
	}
}

// LookupCategory возвращает отображаемое название категории
func LookupCategory(id CategoryID) (string, error) {
	label, ok := categoryLabels[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, id)
	}
	return label, nil
}
