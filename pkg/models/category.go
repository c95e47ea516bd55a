package models

import "strings"

// Category categoría lógica elegida por el jugador. Una categoría puede agrupar
// varias etiquetas del banco de preguntas.
type Category string

const (
	CategoryCS      Category = "CS"
	CategoryOS      Category = "OS"
	CategoryNetwork Category = "Network"
	CategorySwift   Category = "Swift"
	CategorySwiftUI Category = "SwiftUI"
	CategoryUIKit   Category = "UIKit"
	CategoryMobile  Category = "Mobile"
)

// Toda categoría debe tener al menos una etiqueta.
var categoryLabels = map[Category][]string{
	CategoryCS:      {"Computer Science", "Algorithm", "Data Structure"},
	CategoryOS:      {"OS"},
	CategoryNetwork: {"Network"},
	CategorySwift:   {"Swift"},
	CategorySwiftUI: {"SwiftUI"},
	CategoryUIKit:   {"UIKit"},
	CategoryMobile:  {"Mobile Dev"},
}

// Categories devuelve las categorías en orden de presentación
func Categories() []Category {
	return []Category{
		CategoryCS,
		CategoryOS,
		CategoryNetwork,
		CategorySwift,
		CategorySwiftUI,
		CategoryUIKit,
		CategoryMobile,
	}
}

// ParseCategory interpreta el nombre sin distinguir mayúsculas
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories() {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}

	return "", false
}

// RawLabels devuelve las etiquetas del banco que agrupa la categoría
func (c Category) RawLabels() []string {
	labels := categoryLabels[c]
	out := make([]string, len(labels))
	copy(out, labels)

	return out
}

// Matches indica si la etiqueta pertenece a la categoría
func (c Category) Matches(rawLabel string) bool {
	for _, label := range categoryLabels[c] {
		if strings.EqualFold(label, rawLabel) {
			return true
		}
	}

	return false
}

// Level nivel de dificultad
type Level string

const (
	LevelEasy   Level = "Easy"
	LevelNormal Level = "Normal"
	LevelHard   Level = "Hard"
)

// Levels devuelve los niveles disponibles
func Levels() []Level {
	return []Level{LevelEasy, LevelNormal, LevelHard}
}

// ParseLevel interpreta el nivel sin distinguir mayúsculas
func ParseLevel(s string) (Level, bool) {
	s = strings.TrimSpace(s)
	for _, l := range Levels() {
		if strings.EqualFold(string(l), s) {
			return l, true
		}
	}

	return "", false
}

// Matches compara con el nivel objetivo de la pregunta. Un nivel vacío nunca
// coincide.
func (l Level) Matches(targetLevel string) bool {
	if targetLevel == "" {
		return false
	}

	return strings.EqualFold(string(l), strings.TrimSpace(targetLevel))
}
