package domain

// PlaceholderDescription is shown when no forecast could be fetched.
const PlaceholderDescription = "No data available"

// PlaceholderWeather is substituted for a forecast that could not be fetched.
func PlaceholderWeather() WeatherSnapshot {
	return WeatherSnapshot{
		TemperatureF:             0,
		Description:              PlaceholderDescription,
		PrecipitationProbability: 0,
		WindSpeed:                0,
	}
}
