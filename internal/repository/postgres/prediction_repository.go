package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"carprice/internal/api"
	"carprice/internal/domain"
)

const createPredictionQuery = `
		INSERT INTO predictions (
			user_id, brand, car_model, year_of_production, mileage, fuel_type,
			transmission, body, engine_capacity, power, number_of_doors, color,
			predicted_price
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at
	`

const predictionColumns = `id, user_id, brand, car_model, year_of_production, mileage, fuel_type,
		transmission, body, engine_capacity, power, number_of_doors, color,
		predicted_price, created_at`

var predictionOrder = map[string]string{
	api.SortTimestampAsc:  "created_at ASC, id ASC",
	api.SortTimestampDesc: "created_at DESC, id DESC",
	api.SortPriceAsc:      "predicted_price ASC, id ASC",
	api.SortPriceDesc:     "predicted_price DESC, id DESC",
}

// PredictionRepository implements domain.PredictionRepository for PostgreSQL
type PredictionRepository struct {
	db         *sql.DB
	tx         *TxManager
	createStmt *sql.Stmt
}

// NewPredictionRepository creates a new PostgreSQL prediction repository
func NewPredictionRepository(db *sql.DB) (*PredictionRepository, error) {
	stmt, err := db.Prepare(createPredictionQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare create statement: %w", err)
	}
	return &PredictionRepository{db: db, tx: NewTxManager(db), createStmt: stmt}, nil
}

// Close releases the prepared statements
func (r *PredictionRepository) Close() error {
	return r.createStmt.Close()
}

// Create stores a prediction. A missing user is reported as domain.ErrUserNotFound.
func (r *PredictionRepository) Create(ctx context.Context, p *domain.Prediction) error {
	a := p.Attributes
	err := r.createStmt.QueryRowContext(ctx,
		p.UserID,
		a.Brand,
		a.CarModel,
		a.YearOfProduction,
		a.Mileage,
		a.FuelType,
		a.Transmission,
		a.Body,
		a.EngineCapacity,
		a.Power,
		a.NumberOfDoors,
		a.Color,
		p.PredictedPrice,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if IsForeignKeyViolation(err, "") {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("failed to create prediction: %w", err)
	}
	return nil
}

// List returns one page of a user's predictions and the total match count.
// The count and the page are read from the same snapshot.
func (r *PredictionRepository) List(ctx context.Context, f domain.PredictionFilter) ([]*domain.Prediction, int, error) {
	where, args := buildPredictionWhere(f)

	order, ok := predictionOrder[f.Sort]
	if !ok {
		order = predictionOrder[api.SortTimestampDesc]
	}

	countQuery := "SELECT COUNT(*) FROM predictions WHERE " + where
	pageQuery := fmt.Sprintf("SELECT %s FROM predictions WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d",
		predictionColumns, where, order, len(args)+1, len(args)+2)

	var (
		total   int
		results []*domain.Prediction
	)
	err := r.tx.WithReadOnlyTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
			return fmt.Errorf("failed to count predictions: %w", err)
		}
		if total == 0 {
			return nil
		}

		rows, err := tx.QueryContext(ctx, pageQuery, append(args, f.Limit, f.Offset)...)
		if err != nil {
			return fmt.Errorf("failed to query predictions: %w", err)
		}
		defer rows.Close()

		results = make([]*domain.Prediction, 0, f.Limit)
		for rows.Next() {
			p := &domain.Prediction{}
			a := &p.Attributes
			if err := rows.Scan(
				&p.ID,
				&p.UserID,
				&a.Brand,
				&a.CarModel,
				&a.YearOfProduction,
				&a.Mileage,
				&a.FuelType,
				&a.Transmission,
				&a.Body,
				&a.EngineCapacity,
				&a.Power,
				&a.NumberOfDoors,
				&a.Color,
				&p.PredictedPrice,
				&p.CreatedAt,
			); err != nil {
				return fmt.Errorf("failed to scan prediction: %w", err)
			}
			results = append(results, p)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating predictions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	if results == nil {
		results = []*domain.Prediction{}
	}
	return results, total, nil
}

func buildPredictionWhere(f domain.PredictionFilter) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{f.UserID}

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.Until.IsZero() {
		add("created_at < $%d", f.Until)
	}
	if f.MinPrice != nil {
		add("predicted_price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("predicted_price <= $%d", *f.MaxPrice)
	}
	if f.Brand != "" {
		add("LOWER(brand) = LOWER($%d)", f.Brand)
	}
	if f.CarModel != "" {
		add(`car_model ILIKE $%d ESCAPE '\'`, "%"+escapeLike(f.CarModel)+"%")
	}

	return strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
