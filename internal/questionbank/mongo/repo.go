package mongo

import (
	"context"
	"errors"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"recruitai/interview/internal/models"
	"recruitai/interview/internal/questionbank"
)

// bankDocument is the stored shape of a job role's question bank.
type bankDocument struct {
	RoleID    string         `bson:"role_id"`
	Questions []bankQuestion `bson:"questions"`
}

type bankQuestion struct {
	Text            string   `bson:"text"`
	Required        bool     `bson:"required"`
	AllottedSeconds int      `bson:"allotted_seconds"`
	Criteria        []string `bson:"criteria,omitempty"`
	StaticFollowUps []string `bson:"static_follow_ups,omitempty"`
}

// Repo reads question banks from MongoDB.
type Repo struct{ col *mongo.Collection }

// NewRepo connects to Mongo and ensures an index on role_id.
func NewRepo(ctx context.Context, uri string) (*Repo, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	c, err := mongo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.Connect(connectCtx); err != nil {
		return nil, err
	}

	dbName := os.Getenv("QUESTION_BANK_DB")
	if dbName == "" {
		dbName = "recruitai"
	}
	colName := os.Getenv("QUESTION_BANK_COLLECTION")
	if colName == "" {
		colName = "question_banks"
	}

	col := c.Database(dbName).Collection(colName)
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "role_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &Repo{col: col}, nil
}

// PlanForRole loads the bank for a role and converts it into the ordered
// plan snapshot.
func (r *Repo) PlanForRole(ctx context.Context, roleID string) (models.QuestionPlan, error) {
	var doc bankDocument
	err := r.col.FindOne(ctx, bson.M{"role_id": roleID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.QuestionPlan{}, questionbank.ErrBankNotFound
	}
	if err != nil {
		return models.QuestionPlan{}, err
	}

	plan := models.QuestionPlan{RoleID: roleID, Nodes: make([]models.QuestionNode, 0, len(doc.Questions))}
	for _, q := range doc.Questions {
		plan.Nodes = append(plan.Nodes, models.QuestionNode{
			Text:            q.Text,
			Required:        q.Required,
			AllottedSec:     q.AllottedSeconds,
			Criteria:        q.Criteria,
			StaticFollowUps: q.StaticFollowUps,
		})
	}
	return plan, nil
}
