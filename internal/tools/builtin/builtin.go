// Package builtin provides the assistant's in-process tools: weather, taxi
// booking details and the user's profile.
package builtin

import (
	"context"
	"fmt"

	"github.com/michaelbrown/concierge/internal/tools"
)

// DefaultUnit is used when the model does not pass a weather unit.
const DefaultUnit = "fahrenheit"

// WeatherArgs are the arguments of get_current_weather.
type WeatherArgs struct {
	Location string `json:"location"`
	Unit     string `json:"unit"`
}

// WeatherReport is the result of get_current_weather.
type WeatherReport struct {
	Location    string   `json:"location"`
	Temperature string   `json:"temperature"`
	Unit        string   `json:"unit"`
	Forecast    []string `json:"forecast"`
}

// CurrentWeather returns a fixed report; it stands in for a real weather API.
func CurrentWeather(_ context.Context, args WeatherArgs) (any, error) {
	unit := args.Unit
	if unit == "" {
		unit = DefaultUnit
	}
	return WeatherReport{
		Location:    args.Location,
		Temperature: "60",
		Unit:        unit,
		Forecast:    []string{"windy"},
	}, nil
}

// TaxiArgs are the arguments of get_taxi_booking_information.
type TaxiArgs struct {
	PickupLocation     string `json:"pickup_location"`
	DropoffLocation    string `json:"dropoff_location"`
	PickupTime         string `json:"pickup_time"`
	NumberOfPassengers int    `json:"number_of_passengers"`
}

// TaxiBooking echoes the collected booking details.
func TaxiBooking(_ context.Context, args TaxiArgs) (any, error) {
	if args.NumberOfPassengers < 1 {
		return nil, fmt.Errorf("number_of_passengers must be at least 1, got %d", args.NumberOfPassengers)
	}
	return args, nil
}

// UserInfo is the result of get_user_information.
type UserInfo struct {
	Name        string `json:"name"`
	City        string `json:"city"`
	State       string `json:"state"`
	HomeAddress string `json:"home_address"`
	WorkAddress string `json:"work_address"`
}

// UserInformation returns the (fixed) profile of the current user.
func UserInformation(_ context.Context, _ struct{}) (any, error) {
	return UserInfo{
		Name:        "John Doe",
		City:        "San Francisco",
		State:       "CA",
		HomeAddress: "123 Main St, San Francisco, CA",
		WorkAddress: "456 Main St, San Francisco, CA",
	}, nil
}

// Specs returns the built-in tool specs in their canonical order.
func Specs() []tools.ToolSpec {
	return []tools.ToolSpec{
		{
			Name:        "get_current_weather",
			Description: "Get the current weather in a given location",
			Parameters: tools.Schema{
				Properties: []tools.Property{
					{Name: "location", Type: "string", Description: "The city and state, e.g. San Francisco, CA"},
					{Name: "unit", Type: "string", Enum: []string{"celsius", "fahrenheit"}, Default: DefaultUnit},
				},
				Required: []string{"location"},
			},
			Handler: tools.Typed(CurrentWeather),
		},
		{
			Name:        "get_taxi_booking_information",
			Description: "Get the taxi booking information. Ask the questions one by one as the user is a senior citizen and may not be able to answer all the questions at once",
			Parameters: tools.Schema{
				Properties: []tools.Property{
					{Name: "pickup_location", Type: "string", Description: "The pickup location in the city"},
					{Name: "dropoff_location", Type: "string", Description: "The dropoff location. Should always be a valid address."},
					{Name: "pickup_time", Type: "string", Description: "The pickup time. should always be a valid time. if not specified then the current time is given as NOW"},
					{Name: "number_of_passengers", Type: "integer", Description: "The number of passengers"},
				},
				Required: []string{"pickup_location", "dropoff_location", "pickup_time", "number_of_passengers"},
			},
			Handler: tools.Typed(TaxiBooking),
		},
		{
			Name:        "get_user_information",
			Description: "Get the user information, such as the name, city, and state, home address, work address, etc. This function can be called at the start of the conversation to get the user information.",
			Parameters:  tools.Schema{},
			Handler:     tools.Typed(UserInformation),
		},
	}
}

// Register adds the named built-in tools to r. An empty list registers all
// of them; unknown names are an error.
func Register(r *tools.Registry, names []string) error {
	all := Specs()
	if len(names) == 0 {
		return r.RegisterAll(all...)
	}

	byName := make(map[string]tools.ToolSpec, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}
	selected := make([]tools.ToolSpec, 0, len(names))
	for _, n := range names {
		s, ok := byName[n]
		if !ok {
			return fmt.Errorf("unknown builtin tool %q", n)
		}
		selected = append(selected, s)
	}
	return r.RegisterAll(selected...)
}
