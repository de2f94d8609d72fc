package model

// Stats is the in-memory reduction of one user's drinks.
type Stats struct {
	TotalDrinks   int               `json:"totalDrinks"`
	AverageRating float64           `json:"averageRating"`
	TotalSpent    float64           `json:"totalSpent"`
	CountByType   map[DrinkType]int `json:"countByType"`
	FavoriteType  *DrinkType        `json:"favoriteType"`
	UniqueMakers  int               `json:"uniqueMakers"`
	PrivateCount  int               `json:"privateCount"`
	TopRated      []Drink           `json:"topRated"`
}

// Dashboard bundles what the home screen shows after sign-in.
type Dashboard struct {
	Stats               Stats   `json:"stats"`
	RecentDrinks        []Drink `json:"recentDrinks"`
	Recommendations     []Drink `json:"recommendations"`
	UnreadNotifications int     `json:"unreadNotifications"`
	UnreadMessages      int     `json:"unreadMessages"`
}
