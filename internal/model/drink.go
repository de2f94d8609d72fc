package model

import "time"

// DrinkType is the top-level category of a tasting record.
type DrinkType string

const (
	DrinkWine     DrinkType = "wine"
	DrinkBeer     DrinkType = "beer"
	DrinkSpirit   DrinkType = "spirit"
	DrinkCocktail DrinkType = "cocktail"
)

// Valid reports whether t is one of the known drink types.
func (t DrinkType) Valid() bool {
	switch t {
	case DrinkWine, DrinkBeer, DrinkSpirit, DrinkCocktail:
		return true
	}
	return false
}

// Drink is a single tasting record.
//
// Nose, Palate, Finish and Pairings are lists of short descriptors
// ("cherry", "oak"). They are stored as JSON text columns.
// Price and ABV are optional, so they are pointers: nil means "not recorded",
// which is different from a free drink or a 0% beer.
type Drink struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Maker     string    `json:"maker"`
	Type      DrinkType `json:"type"`
	Subtype   string    `json:"subtype"`
	Rating    float64   `json:"rating"`
	Nose      []string  `json:"nose"`
	Palate    []string  `json:"palate"`
	Finish    []string  `json:"finish"`
	Notes     string    `json:"notes"`
	Price     *float64  `json:"price"`
	Currency  string    `json:"currency"`
	Location  string    `json:"location"`
	Pairings  []string  `json:"pairings"`
	Occasion  string    `json:"occasion"`
	Mood      string    `json:"mood"`
	ABV       *float64  `json:"abv"`
	ImageURL  string    `json:"imageUrl"`
	IsPrivate bool      `json:"isPrivate"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Sort keys accepted by DrinkFilter.SortBy.
const (
	SortByDate   = "date"
	SortByRating = "rating"
	SortByName   = "name"
	SortByPrice  = "price"
)

// DrinkFilter is an AND-composed set of optional constraints.
// Zero values mean "no constraint".
type DrinkFilter struct {
	UserID     string
	Type       DrinkType
	Subtype    string
	MinRating  *float64
	MaxRating  *float64
	MinPrice   *float64
	MaxPrice   *float64
	Maker      string // substring match
	Search     string // substring over name OR maker
	From       *time.Time
	To         *time.Time
	IsPrivate  *bool
	ExcludeIDs []string
	SortBy     string
	Desc       bool
	Limit      int
}

// FeedItem is a public drink decorated for the community feed.
type FeedItem struct {
	Drink      Drink       `json:"drink"`
	User       UserSummary `json:"user"`
	CheerCount int         `json:"cheerCount"`
	HasCheered bool        `json:"hasCheered"`
	Comments   []Comment   `json:"comments"`
}
