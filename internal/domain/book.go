package domain

import "time"

// Category is a book genre/topic label. Books and categories are many-to-many.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Book represents a readable book in the catalog.
type Book struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Author           string     `json:"author"`
	Published        string     `json:"published"`
	ShortDescription string     `json:"short_description"`
	FullDescription  string     `json:"full_description,omitempty"`
	Text             string     `json:"text,omitempty"`
	Categories       []Category `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CategoryNames returns the category names in stored order.
func (b *Book) CategoryNames() []string {
	names := make([]string, 0, len(b.Categories))
	for _, c := range b.Categories {
		names = append(names, c.Name)
	}
	return names
}
