package categories

import "github.com/finbot-dev/finbot/internal/model"

// Builtin returns the categories every user starts with.
func Builtin() []model.Category {
	return []model.Category{
		{Name: "Débito"},
		{Name: "Crédito"},
		{Name: "Alimentação"},
		{Name: "Pix"},
	}
}

// IsBuiltin reports whether name folds to a built-in category.
func IsBuiltin(name string) bool {
	return NewVocabulary(Builtin()).Exists(name)
}
