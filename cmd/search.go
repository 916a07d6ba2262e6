package main

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/proprio-data/cadastre-api/internal/export"
	"github.com/proprio-data/cadastre-api/internal/geostore"
)

var (
	searchPoints string
	searchLon    float64
	searchLat    float64
	searchRadius float64
	searchLimit  int
	searchOutput string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run an ownership search from the command line",
	Long:  "Searches by polygon (--points \"lon,lat lon,lat ...\") or by radius (--lon --lat --radius). Results go to stdout as JSON or to a file as XLSX.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("search"); err != nil {
			return err
		}

		region, err := regionFromFlags()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res := env.orch.Search(ctx, region, searchLimit)
		if res.Diagnostic != "" {
			zap.L().Warn("search returned no owners", zap.String("diagnostic", res.Diagnostic))
		}

		if strings.HasSuffix(searchOutput, ".xlsx") {
			f, err := os.Create(searchOutput)
			if err != nil {
				return eris.Wrapf(err, "create %s", searchOutput)
			}
			defer f.Close()
			return export.WriteXLSX(f, res)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

// regionFromFlags builds the search region: a polygon when --points is set,
// otherwise a radius query.
func regionFromFlags() (geostore.Region, error) {
	if searchPoints != "" {
		points, err := parsePoints(searchPoints)
		if err != nil {
			return nil, err
		}
		return geostore.Polygon{Points: points}, nil
	}
	if searchRadius > 0 {
		return geostore.RadiusQuery{
			Center: geostore.Point{Longitude: searchLon, Latitude: searchLat},
			Meters: searchRadius,
		}, nil
	}
	return nil, eris.New("either --points or --radius is required")
}

// parsePoints parses "lon,lat lon,lat ..." into points.
func parsePoints(s string) ([]geostore.Point, error) {
	var points []geostore.Point
	for _, pair := range strings.Fields(s) {
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, eris.Errorf("malformed point %q, want lon,lat", pair)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, eris.Errorf("malformed longitude %q", parts[0])
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, eris.Errorf("malformed latitude %q", parts[1])
		}
		points = append(points, geostore.Point{Longitude: lon, Latitude: lat})
	}
	return points, nil
}

func init() {
	searchCmd.Flags().StringVar(&searchPoints, "points", "", "polygon vertices as \"lon,lat lon,lat ...\"")
	searchCmd.Flags().Float64Var(&searchLon, "lon", 0, "radius center longitude")
	searchCmd.Flags().Float64Var(&searchLat, "lat", 0, "radius center latitude")
	searchCmd.Flags().Float64Var(&searchRadius, "radius", 0, "radius in meters")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "max distinct owners (default from config)")
	searchCmd.Flags().StringVar(&searchOutput, "output", "", "write results to an .xlsx file instead of stdout")
	rootCmd.AddCommand(searchCmd)
}
