package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/briangreenhill/moto/internal/ride"
	"github.com/google/uuid"
)

const msToKmh = 3.6

type Rides struct {
	db Querier
}

func NewRides(db Querier) *Rides {
	return &Rides{db: db}
}

// Save stores r for userID and returns the id assigned by the database.
// Saving the same ride twice updates the stored row.
func (s *Rides) Save(ctx context.Context, userID string, r ride.Ride) (string, error) {
	stats := r.Stats(time.Now())
	trace, err := json.Marshal(r.Trace)
	if err != nil {
		return "", fmt.Errorf("encoding trace: %w", err)
	}

	var id string
	row := s.db.QueryRow(ctx, `
		INSERT INTO rides (id, user_id, name, start_time, end_time, distance, max_speed, avg_speed, elevation_gain, elevation_loss, trace)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			end_time = EXCLUDED.end_time,
			distance = EXCLUDED.distance,
			max_speed = EXCLUDED.max_speed,
			avg_speed = EXCLUDED.avg_speed,
			elevation_gain = EXCLUDED.elevation_gain,
			elevation_loss = EXCLUDED.elevation_loss,
			trace = EXCLUDED.trace
		WHERE rides.user_id = EXCLUDED.user_id
		RETURNING id
	`, r.ID.String(), userID, r.Name, r.StartTime, r.EndTime,
		stats.Distance, stats.MaxSpeed*msToKmh, stats.AverageSpeed*msToKmh,
		stats.TotalAscent, stats.TotalDescent, trace)
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("saving ride %s: %w", r.ID, err)
	}
	return id, nil
}

// Fetch returns the rides of userID, newest first.
func (s *Rides) Fetch(ctx context.Context, userID string) ([]ride.Ride, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, start_time, end_time, trace
		FROM rides WHERE user_id = $1
		ORDER BY start_time DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching rides: %w", err)
	}
	defer rows.Close()

	rides := []ride.Ride{}
	for rows.Next() {
		var (
			id    string
			r     ride.Ride
			trace []byte
		)
		if err := rows.Scan(&id, &r.Name, &r.StartTime, &r.EndTime, &trace); err != nil {
			return nil, fmt.Errorf("scanning ride: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			r.ID = uuid.New()
		}
		r.Trace = ride.Trace{}
		if len(trace) > 0 {
			if err := json.Unmarshal(trace, &r.Trace); err != nil {
				return nil, fmt.Errorf("decoding trace of ride %s: %w", id, err)
			}
		}
		rides = append(rides, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetching rides: %w", err)
	}
	return rides, nil
}
