package templates

import (
	"embed"
	"html/template"
	"io"
	"strconv"
	"strings"
)

//go:embed *.html
var templateFS embed.FS

var templates *template.Template

func init() {
	var err error
	templates, err = template.New("").ParseFS(templateFS, "*.html")
	if err != nil {
		panic(err)
	}
}

// Render executes a named template with the given data and writes to w
func Render(w io.Writer, name string, data interface{}) error {
	// Extract template name from filename (e.g., "placemark-tooltip.html" -> "placemark-tooltip")
	return templates.ExecuteTemplate(w, strings.TrimSuffix(name, ".html"), data)
}

// TooltipData is the data structure for a map placemark tooltip.
// Coordinates are preformatted with six decimal places.
type TooltipData struct {
	Name      string
	ID        int
	Channels  int
	Timestamp string
	Lat       string
	Lon       string
}

// NewTooltipData builds tooltip data for a device position.
func NewTooltipData(id int, name string, channels int, timestamp string, lat, lon float64) TooltipData {
	return TooltipData{
		Name:      name,
		ID:        id,
		Channels:  channels,
		Timestamp: timestamp,
		Lat:       strconv.FormatFloat(lat, 'f', 6, 64),
		Lon:       strconv.FormatFloat(lon, 'f', 6, 64),
	}
}

// RenderTooltip renders the placemark tooltip markup. Device names are
// HTML-escaped.
func RenderTooltip(data TooltipData) (string, error) {
	var sb strings.Builder
	if err := Render(&sb, "placemark-tooltip.html", data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
