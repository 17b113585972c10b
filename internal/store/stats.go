package store

import "fmt"

// Stats holds aggregate statistics for the bug store.
type Stats struct {
	TotalBugs     int
	EmbeddedBugs  int
	CountByStatus map[string]int
}

// GetStats returns aggregate counts for the status command.
func (d *DB) GetStats() (*Stats, error) {
	stats := &Stats{CountByStatus: make(map[string]int)}

	err := d.db.QueryRow(`SELECT COUNT(*) FROM bugs`).Scan(&stats.TotalBugs)
	if err != nil {
		return nil, fmt.Errorf("counting bugs: %w", err)
	}

	err = d.db.QueryRow(`SELECT COUNT(*) FROM bugs WHERE embedding IS NOT NULL`).Scan(&stats.EmbeddedBugs)
	if err != nil {
		return nil, fmt.Errorf("counting embedded bugs: %w", err)
	}

	rows, err := d.db.Query(`SELECT status, COUNT(*) FROM bugs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		stats.CountByStatus[status] = count
	}
	return stats, rows.Err()
}
