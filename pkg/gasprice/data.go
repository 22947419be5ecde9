package gasprice

// Prices in USD per US gallon.
var defaultEntries = []Entry{
	{Country: "US", PricePerGallon: 3.45},
	{Country: "US", Region: "Alabama", PricePerGallon: 3.05},
	{Country: "US", Region: "Arizona", PricePerGallon: 3.60},
	{Country: "US", Region: "California", PricePerGallon: 4.85},
	{Country: "US", Region: "Colorado", PricePerGallon: 3.30},
	{Country: "US", Region: "Florida", PricePerGallon: 3.35},
	{Country: "US", Region: "Georgia", PricePerGallon: 3.15},
	{Country: "US", Region: "Hawaii", PricePerGallon: 4.70},
	{Country: "US", Region: "Illinois", PricePerGallon: 3.70},
	{Country: "US", Region: "Massachusetts", PricePerGallon: 3.40},
	{Country: "US", Region: "Michigan", PricePerGallon: 3.40},
	{Country: "US", Region: "Nevada", PricePerGallon: 4.25},
	{Country: "US", Region: "New York", PricePerGallon: 3.55},
	{Country: "US", Region: "Ohio", PricePerGallon: 3.25},
	{Country: "US", Region: "Oregon", PricePerGallon: 4.10},
	{Country: "US", Region: "Pennsylvania", PricePerGallon: 3.60},
	{Country: "US", Region: "Texas", PricePerGallon: 2.95},
	{Country: "US", Region: "Washington", PricePerGallon: 4.35},
	{Country: "CA", PricePerGallon: 4.10},
	{Country: "CA", Region: "British Columbia", PricePerGallon: 4.75},
	{Country: "CA", Region: "Ontario", PricePerGallon: 4.05},
	{Country: "CA", Region: "Quebec", PricePerGallon: 4.20},
	{Country: "MX", PricePerGallon: 4.00},
	{Country: "GB", PricePerGallon: 6.50},
	{Country: "IE", PricePerGallon: 6.90},
	{Country: "DE", PricePerGallon: 6.80},
	{Country: "FR", PricePerGallon: 7.00},
	{Country: "NL", PricePerGallon: 7.90},
	{Country: "NO", PricePerGallon: 8.40},
	{Country: "ES", PricePerGallon: 6.20},
	{Country: "IT", PricePerGallon: 7.20},
	{Country: "JP", PricePerGallon: 4.60},
	{Country: "AU", PricePerGallon: 4.50},
	{Country: "NZ", PricePerGallon: 5.30},
	{Country: "IN", PricePerGallon: 4.30},
	{Country: "BR", PricePerGallon: 5.00},
}

// subdivisionNames maps ISO 3166-2 subdivision codes to the region names used above.
var subdivisionNames = map[string]string{
	"US-AL": "Alabama",
	"US-AZ": "Arizona",
	"US-CA": "California",
	"US-CO": "Colorado",
	"US-FL": "Florida",
	"US-GA": "Georgia",
	"US-HI": "Hawaii",
	"US-IL": "Illinois",
	"US-MA": "Massachusetts",
	"US-MI": "Michigan",
	"US-NV": "Nevada",
	"US-NY": "New York",
	"US-OH": "Ohio",
	"US-OR": "Oregon",
	"US-PA": "Pennsylvania",
	"US-TX": "Texas",
	"US-WA": "Washington",
	"CA-BC": "British Columbia",
	"CA-ON": "Ontario",
	"CA-QC": "Quebec",
}
