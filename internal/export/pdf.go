// Package export renders trips as PDF itineraries and iCalendar feeds.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/phpdave11/gofpdf"
	"github.com/samber/lo"
	"github.com/skip2/go-qrcode"

	"tripplanner/internal/domain"
)

// PDFOptions controls the PDF rendering.
type PDFOptions struct {
	// ShareURL, when set, is printed with a QR code on the first page.
	ShareURL string
}

// PDF renders the trip's itinerary as an A4 document.
func PDF(trip domain.Trip, opts PDFOptions) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	// The core fonts are cp1252; translate so accented names survive.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(trip.Title), false)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr(trip.Title))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	for _, line := range summaryLines(trip) {
		pdf.Cell(0, 6, tr(line))
		pdf.Ln(6)
	}

	if opts.ShareURL != "" {
		png, err := qrcode.Encode(opts.ShareURL, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("encode share qr: %w", err)
		}
		imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("share-qr", imageOpts, bytes.NewReader(png))
		pdf.ImageOptions("share-qr", 160, 12, 35, 35, false, imageOpts, 0, opts.ShareURL)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.Text(150, 52, tr(opts.ShareURL))
	}
	pdf.Ln(8)

	if len(trip.Itinerary) == 0 {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.Cell(0, 8, "No itinerary has been generated yet.")
		pdf.Ln(8)
	}
	for _, day := range trip.Itinerary {
		pdf.SetFont("Helvetica", "B", 14)
		heading := fmt.Sprintf("Day %d", day.Day)
		if day.Date != "" {
			heading += " - " + day.Date
		}
		pdf.Cell(0, 9, heading)
		pdf.Ln(9)
		if day.Notes != "" {
			pdf.SetFont("Helvetica", "I", 10)
			pdf.MultiCell(0, 5, tr(day.Notes), "", "L", false)
		}
		for _, a := range day.Activities {
			pdf.SetFont("Helvetica", "B", 11)
			pdf.MultiCell(0, 6, tr(activityHeading(a)), "", "L", false)
			pdf.SetFont("Helvetica", "", 10)
			if details := activityDetails(a); details != "" {
				pdf.MultiCell(0, 5, tr(details), "", "L", false)
			}
			pdf.Ln(2)
		}
		pdf.SetFont("Helvetica", "", 10)
		pdf.Cell(0, 6, "Day budget: $"+day.Budget.StringFixed(2))
		pdf.Ln(10)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func summaryLines(trip domain.Trip) []string {
	lines := []string{"Destination: " + trip.Destination}
	if trip.StartDate != nil && trip.EndDate != nil {
		lines = append(lines, fmt.Sprintf("Dates: %s to %s", trip.StartDate.Format("Jan 2, 2006"), trip.EndDate.Format("Jan 2, 2006")))
	}
	lines = append(lines,
		fmt.Sprintf("Travelers: %d", trip.Travelers),
		"Budget: $"+trip.Budget.StringFixed(2),
	)
	return lines
}

func activityHeading(a domain.Activity) string {
	head := a.Name
	if a.TimeSlot != "" {
		head = a.TimeSlot + "  " + head
	}
	return head
}

func activityDetails(a domain.Activity) string {
	parts := []string{fmt.Sprintf("%s, %d min, $%s", a.Type, a.Duration, a.Cost.StringFixed(2))}
	if a.Location.Name != "" {
		parts = append(parts, lo.Ternary(a.Location.Address != "", a.Location.Name+", "+a.Location.Address, a.Location.Name))
	}
	if a.Description != "" {
		parts = append(parts, a.Description)
	}
	if len(a.Tips) > 0 {
		parts = append(parts, "Tips: "+strings.Join(a.Tips, "; "))
	}
	return strings.Join(parts, "\n")
}
