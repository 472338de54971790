package domain

// Attributes groups the structured data filled in by enrichment.
// A nil group means no data was recorded for it.
type Attributes struct {
	InfrastructureBasic    *BasicInfrastructure    `json:"infrastructure_basic,omitempty"`
	InfrastructureExtended *ExtendedInfrastructure `json:"infrastructure_extended,omitempty"`
	Transport              *Transport              `json:"transport,omitempty"`
	Environment            *Environment            `json:"environment,omitempty"`
	Neighborhood           *Neighborhood           `json:"neighborhood,omitempty"`
	ServicesQuality        *ServicesQuality        `json:"services_quality,omitempty"`
}

// BasicInfrastructure flags the four utilities.
type BasicInfrastructure struct {
	Electricity bool `json:"electricity"`
	Water       bool `json:"water"`
	Internet    bool `json:"internet"`
	Gas         bool `json:"gas"`
}

// Proximity describes whether a facility exists nearby and how far it is in meters.
// A nil DistanceM is treated as beyond every distance band.
type Proximity struct {
	Available bool     `json:"available"`
	DistanceM *float64 `json:"distance_m,omitempty"`
}

// ExtendedInfrastructure covers nearby amenities.
type ExtendedInfrastructure struct {
	Supermarket Proximity `json:"supermarket"`
	School      Proximity `json:"school"`
	Restaurant  Proximity `json:"restaurant"`
	Hospital    Proximity `json:"hospital"`
}

// Transport covers access to transport links.
type Transport struct {
	TrainStation Proximity `json:"train_station"`
	BusStation   Proximity `json:"bus_station"`
	Airport      Proximity `json:"airport"`
	Highway      Proximity `json:"highway"`
}

// Environment holds views and orientation.
type Environment struct {
	SeaView      bool   `json:"sea_view"`
	MountainView bool   `json:"mountain_view"`
	ForestView   bool   `json:"forest_view"`
	Orientation  string `json:"orientation,omitempty"`
}

// Level is a coarse low/medium/high category.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Neighborhood describes the surrounding area.
type Neighborhood struct {
	PriceLevel      Level `json:"area_price_level,omitempty"`
	NewConstruction bool  `json:"new_houses"`
	Noise           Level `json:"noise,omitempty"`
}

// ServicesQuality keeps average ratings (1-5) of nearby services; nil means unknown.
type ServicesQuality struct {
	SchoolRating     *float64 `json:"school_avg_rating,omitempty"`
	RestaurantRating *float64 `json:"restaurant_avg_rating,omitempty"`
	CafeRating       *float64 `json:"cafe_avg_rating,omitempty"`
}
