package testing

import (
	"fmt"
	"time"

	"github.com/amirphl/page-pilot/models"
	"github.com/amirphl/page-pilot/utils"
	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB    *gorm.DB
	Faker *gofakeit.Faker
}

// NewTestFixtures creates a fixtures helper with a deterministic faker
func NewTestFixtures(db *gorm.DB) *TestFixtures {
	return &TestFixtures{DB: db, Faker: gofakeit.New(42)}
}

// PostOptions customizes CreatePost; zero values get generated content
type PostOptions struct {
	Content       string
	Link          *string
	ImageURLs     []string
	Status        models.PostStatus
	ScheduledTime *time.Time
	PublishedAt   *time.Time
	Destinations  []string
}

// CreatePost inserts a post with one pending publication per destination
func (tf *TestFixtures) CreatePost(opts PostOptions) (*models.Post, error) {
	content := opts.Content
	if content == "" {
		content = tf.Faker.Sentence(12)
	}
	status := opts.Status
	if status == "" {
		status = models.PostStatusDraft
	}

	post := &models.Post{
		UserID:        1,
		Content:       content,
		Link:          opts.Link,
		ImageURLs:     opts.ImageURLs,
		Status:        status,
		ScheduledTime: opts.ScheduledTime,
		PublishedAt:   opts.PublishedAt,
	}
	for _, dest := range opts.Destinations {
		post.Publications = append(post.Publications, models.Publication{
			DestinationID:   dest,
			DestinationName: tf.Faker.Company(),
			Status:          models.PublicationStatusPending,
		})
	}

	if err := tf.DB.Create(post).Error; err != nil {
		return nil, fmt.Errorf("failed to create test post: %w", err)
	}
	return post, nil
}

// CreateScheduledPost inserts a scheduled post due at the given time
func (tf *TestFixtures) CreateScheduledPost(at time.Time, destinations ...string) (*models.Post, error) {
	return tf.CreatePost(PostOptions{
		Status:        models.PostStatusScheduled,
		ScheduledTime: &at,
		Destinations:  destinations,
	})
}

// CreatePublishedPost inserts a published post whose publications already carry external ids
func (tf *TestFixtures) CreatePublishedPost(opts PostOptions, publishedAt time.Time) (*models.Post, error) {
	opts.Status = models.PostStatusPublished
	opts.PublishedAt = &publishedAt
	if len(opts.Destinations) == 0 {
		opts.Destinations = []string{"page-1"}
	}

	post, err := tf.CreatePost(opts)
	if err != nil {
		return nil, err
	}

	for i := range post.Publications {
		pub := &post.Publications[i]
		externalID := fmt.Sprintf("%s_%d", pub.DestinationID, tf.Faker.Number(100000, 999999))
		pub.Status = models.PublicationStatusPublished
		pub.ExternalID = &externalID
		pub.PublishedAt = &publishedAt
		if err := tf.DB.Model(pub).Updates(map[string]any{
			"status":       pub.Status,
			"external_id":  externalID,
			"published_at": publishedAt,
		}).Error; err != nil {
			return nil, fmt.Errorf("failed to publish test publication: %w", err)
		}
	}
	return post, nil
}

// RandomCounts generates plausible engagement numbers
func (tf *TestFixtures) RandomCounts() models.RawCounts {
	return models.RawCounts{
		Likes:        int64(tf.Faker.Number(0, 500)),
		Comments:     int64(tf.Faker.Number(0, 100)),
		Shares:       int64(tf.Faker.Number(0, 50)),
		Impressions:  int64(tf.Faker.Number(1000, 20000)),
		EngagedUsers: int64(tf.Faker.Number(0, 800)),
		Clicks:       int64(tf.Faker.Number(0, 300)),
	}
}

// CreateAdmin inserts an admin with the given password
func (tf *TestFixtures) CreateAdmin(username, password string) (*models.Admin, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &models.Admin{
		Username:     username,
		PasswordHash: string(hash),
		IsActive:     utils.ToPtr(true),
	}
	if err := tf.DB.Create(admin).Error; err != nil {
		return nil, fmt.Errorf("failed to create test admin: %w", err)
	}
	return admin, nil
}
