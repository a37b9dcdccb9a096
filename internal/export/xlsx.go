package export

import (
	"fmt"
	"io"
	"sort"

	"staybooking/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	ReservationsSheet = "Reservations"
	OccupancySheet    = "Occupancy"
)

var reservationHeaders = []string{"ID", "Guest", "Check-in", "Check-out", "Nights", "Created"}

// WriteReservations renders a stay's reservations as an xlsx workbook.
// The second sheet lists every occupied night with the owning reservation.
func WriteReservations(w io.Writer, stay *models.Stay, reservations []models.Reservation) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(ReservationsSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(ReservationsSheet, "A1", fmt.Sprintf("%s (#%d)", stay.Name, stay.ID))
	_ = f.MergeCell(ReservationsSheet, "A1", "F1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(ReservationsSheet, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, h := range reservationHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(ReservationsSheet, cell, h)
		_ = f.SetCellStyle(ReservationsSheet, cell, cell, headerStyle)
	}

	sorted := append([]models.Reservation(nil), reservations...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CheckinDate.Equal(sorted[j].CheckinDate) {
			return sorted[i].CheckinDate.Before(sorted[j].CheckinDate)
		}
		return sorted[i].ID < sorted[j].ID
	})

	type night struct {
		date string
		id   int64
	}
	var nights []night

	for i, r := range sorted {
		row := i + 3
		values := []interface{}{
			r.ID,
			r.GuestID,
			r.CheckinDate.Format(models.DateLayout),
			r.CheckoutDate.Format(models.DateLayout),
			r.Range().Nights(),
			r.CreatedAt.UTC().Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(ReservationsSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing reservation %d: %w", r.ID, err)
		}
		for _, d := range r.Range().Dates() {
			nights = append(nights, night{date: d.Format(models.DateLayout), id: r.ID})
		}
	}
	_ = f.SetColWidth(ReservationsSheet, "A", "A", 8)
	_ = f.SetColWidth(ReservationsSheet, "B", "B", 25)
	_ = f.SetColWidth(ReservationsSheet, "C", "F", 16)

	if _, err := f.NewSheet(OccupancySheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	_ = f.SetSheetRow(OccupancySheet, "A1", &[]interface{}{"Date", "Reservation"})
	_ = f.SetCellStyle(OccupancySheet, "A1", "B1", headerStyle)
	sort.Slice(nights, func(i, j int) bool { return nights[i].date < nights[j].date })
	for i, n := range nights {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetSheetRow(OccupancySheet, cell, &[]interface{}{n.date, n.id})
	}
	_ = f.SetColWidth(OccupancySheet, "A", "B", 14)

	_ = f.DeleteSheet("Sheet1")

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// FileName is the attachment name for a stay export.
func FileName(stayID int64) string {
	return fmt.Sprintf("stay_%d_reservations.xlsx", stayID)
}
