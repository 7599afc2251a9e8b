package anchor

import "strings"

// Options describes every configurable attribute of the virtual presenter.
// A record is always fully populated; defaults are supplied at creation and
// every field except Prompt and ClothingDetails is drawn from the catalogs
// below.
type Options struct {
	Prompt          string `json:"prompt"`
	Gender          string `json:"gender"`
	Ethnicity       string `json:"ethnicity"`
	Age             string `json:"age"`
	Expression      string `json:"expression"`
	HairStyle       string `json:"hairStyle"`
	HairColor       string `json:"hairColor"`
	EyeStyle        string `json:"eyeStyle"`
	EyeColor        string `json:"eyeColor"`
	Clothing        string `json:"clothing"`
	ClothingDetails string `json:"clothingDetails"`
	Background      string `json:"background"`
	AspectRatio     string `json:"aspectRatio"`
}

func DefaultOptions() Options {
	return Options{
		Prompt:          "A professional AI news anchor with brown hair, wearing a modern navy business suit, standing in a high-tech virtual news studio.",
		Gender:          "Female",
		Ethnicity:       "Asian",
		Age:             "Young adult (25-35)",
		Expression:      "Neutral",
		HairStyle:       "Long straight",
		HairColor:       "Brown",
		EyeStyle:        "Almond eyes",
		EyeColor:        "Black",
		Clothing:        "Business suit",
		ClothingDetails: "",
		Background:      "Virtual news studio",
		AspectRatio:     "16:9",
	}
}

// Equal reports field-for-field equality. The comparison is spelled out per
// field so the matching contract stays explicit; any difference, including
// surrounding whitespace in free-text fields, counts as a mismatch.
func (o Options) Equal(other Options) bool {
	return o.Prompt == other.Prompt &&
		o.Gender == other.Gender &&
		o.Ethnicity == other.Ethnicity &&
		o.Age == other.Age &&
		o.Expression == other.Expression &&
		o.HairStyle == other.HairStyle &&
		o.HairColor == other.HairColor &&
		o.EyeStyle == other.EyeStyle &&
		o.EyeColor == other.EyeColor &&
		o.Clothing == other.Clothing &&
		o.ClothingDetails == other.ClothingDetails &&
		o.Background == other.Background &&
		o.AspectRatio == other.AspectRatio
}

func Genders() []string {
	return []string{"Female", "Male", "Non-binary"}
}

func Ethnicities() []string {
	return []string{"Asian", "Caucasian", "Black", "Hispanic", "Middle Eastern"}
}

func Ages() []string {
	return []string{
		"Young adult (25-35)",
		"Youth (18-24)",
		"Middle-aged (36-50)",
		"Senior (50+)",
	}
}

func Expressions() []string {
	return []string{"Neutral", "Focused", "Soft smile", "Bright smile", "Serious"}
}

func HairStyles() []string {
	return []string{
		"Long straight",
		"Long wavy",
		"Natural loose",
		"Short bob",
		"Pixie cut",
		"High bun",
		"Ponytail",
		"Twin braids",
		"Traditional updo",
		"Slicked back",
	}
}

func HairColors() []string {
	return []string{"Black", "Brown", "Blonde", "Chestnut", "Red", "Platinum", "Gray"}
}

func EyeStyles() []string {
	return []string{"Almond eyes", "Round eyes", "Monolid eyes", "Double eyelid eyes", "Upturned eyes"}
}

func EyeColors() []string {
	return []string{"Black", "Brown", "Blue", "Green", "Gray", "Amber"}
}

func ClothingStyles() []string {
	return []string{
		"Business suit",
		"Traditional ao dai",
		"Casual folk",
		"Historical costume",
		"Glamorous",
		"Everyday casual",
		"Techwear",
	}
}

func Backgrounds() []string {
	return []string{
		"Virtual news studio",
		"Modern meeting room",
		"Rustic home kitchen",
		"Rice field",
		"Vegetable garden",
		"Countryside yard",
		"City outdoors",
		"Ancient palace",
		"Royal garden",
		"Sunset beach",
		"Neon-lit studio",
		"Abstract backdrop",
		"Green screen",
		"Blue screen",
	}
}

func AspectRatios() []string {
	return []string{"16:9", "9:16", "1:1", "4:3", "3:4"}
}

// Catalog bundles every choice list for UI rendering.
type Catalog struct {
	Genders        []string `json:"genders"`
	Ethnicities    []string `json:"ethnicities"`
	Ages           []string `json:"ages"`
	Expressions    []string `json:"expressions"`
	HairStyles     []string `json:"hairStyles"`
	HairColors     []string `json:"hairColors"`
	EyeStyles      []string `json:"eyeStyles"`
	EyeColors      []string `json:"eyeColors"`
	ClothingStyles []string `json:"clothingStyles"`
	Backgrounds    []string `json:"backgrounds"`
	AspectRatios   []string `json:"aspectRatios"`
}

func Choices() Catalog {
	return Catalog{
		Genders:        Genders(),
		Ethnicities:    Ethnicities(),
		Ages:           Ages(),
		Expressions:    Expressions(),
		HairStyles:     HairStyles(),
		HairColors:     HairColors(),
		EyeStyles:      EyeStyles(),
		EyeColors:      EyeColors(),
		ClothingStyles: ClothingStyles(),
		Backgrounds:    Backgrounds(),
		AspectRatios:   AspectRatios(),
	}
}

func ValidAspectRatio(value string) bool {
	value = strings.TrimSpace(value)
	for _, ar := range AspectRatios() {
		if ar == value {
			return true
		}
	}
	return false
}
