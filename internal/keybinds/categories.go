package keybinds

import (
	"strings"

	"github.com/studiowebux/keyclash/internal/types"
)

// menuCategories maps top-level menu titles (lowercase) to categories
var menuCategories = map[string]types.Category{
	"file":       types.CategoryFile,
	"edit":       types.CategoryEdit,
	"format":     types.CategoryEdit,
	"view":       types.CategoryView,
	"window":     types.CategoryWindow,
	"go":         types.CategoryNavigation,
	"navigate":   types.CategoryNavigation,
	"navigation": types.CategoryNavigation,
	"history":    types.CategoryNavigation,
	"bookmarks":  types.CategoryNavigation,
}

// InferCategory picks a category from the menu a shortcut was found in.
// Unknown menus map to CategoryOther.
func InferCategory(menuTitle string) types.Category {
	title := strings.ToLower(strings.TrimSpace(menuTitle))
	if c, ok := menuCategories[title]; ok {
		return c
	}
	return types.CategoryOther
}
