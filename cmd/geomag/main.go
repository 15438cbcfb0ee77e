// Command geomag evaluates the geomagnetic field at one point and prints
// the result, using the embedded IGRF-13 table or a coefficient file
// supplied with -coeffs.
//
// Usage:
//
//	geomag [-unit nT|uT|T|G] [-coeffs file] <date> <lat_deg> <lon_deg> <alt_m>
//
// The date is ISO 8601, either a full timestamp or a bare yyyy-mm-dd.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/geomag/geomagd/internal/field"
	"github.com/geomag/geomagd/internal/geodesy"
	"github.com/geomag/geomagd/internal/igrf"
)

func main() {
	unitFlag := flag.String("unit", "nT", "output unit: nT, uT, T or G")
	coeffsFlag := flag.String("coeffs", "", "IAGA coefficient file (default: embedded IGRF-13)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 4 {
		usage()
		os.Exit(1)
	}

	if err := run(flag.Args(), *unitFlag, *coeffsFlag); err != nil {
		fmt.Fprintln(os.Stderr, "geomag:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: geomag [-unit nT|uT|T|G] [-coeffs file] <date> <lat_deg> <lon_deg> <alt_m>")
	flag.PrintDefaults()
}

func run(args []string, unitName, coeffsPath string) error {
	when, err := geodesy.ParseInstant(args[0])
	if err != nil {
		return err
	}

	var coords [3]float64
	for i, name := range []string{"latitude", "longitude", "altitude"} {
		v, err := strconv.ParseFloat(args[i+1], 64)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", name, args[i+1])
		}
		coords[i] = v
	}
	lat, lon, alt := coords[0], coords[1], coords[2]
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v outside [-90, 90]", lat)
	}

	unit, err := field.ParseUnit(unitName)
	if err != nil {
		return err
	}

	set := igrf.Default()
	if coeffsPath != "" {
		f, err := os.Open(coeffsPath)
		if err != nil {
			return err
		}
		defer f.Close()
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		set, err = igrf.Parse(f, logger)
		if err != nil {
			return err
		}
	}

	v, err := field.EvaluateScaled(set, when, geodesy.NewWGS84(lat, lon, alt), unit)
	if err != nil {
		return err
	}
	c := v.Components()
	sym := unit.Symbol()

	fmt.Printf("Epoch:       %.4f\n", geodesy.FractionalYears(when))
	fmt.Printf("Position:    %.4f° %.4f° %.1f m (WGS-84)\n", lat, lon, alt)
	fmt.Printf("North:       %12.4f %s\n", v.North, sym)
	fmt.Printf("East:        %12.4f %s\n", v.East, sym)
	fmt.Printf("Down:        %12.4f %s\n", v.Down, sym)
	fmt.Printf("Horizontal:  %12.4f %s\n", c.Horizontal, sym)
	fmt.Printf("Total:       %12.4f %s\n", c.Total, sym)
	fmt.Printf("Inclination: %12.4f°\n", c.InclinationDeg())
	fmt.Printf("Declination: %12.4f°\n", c.DeclinationDeg())
	return nil
}
