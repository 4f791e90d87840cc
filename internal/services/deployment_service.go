package services

import (
	"github.com/rxtech-lab/contractgen/internal/models"
	"gorm.io/gorm"
)

type DeploymentService interface {
	CreateDeployment(deployment *models.Deployment) error
	GetDeploymentByID(id uint) (*models.Deployment, error)
	GetDeploymentByAttempt(sessionID string, attempt int) (*models.Deployment, error)
	ListDeployments() ([]models.Deployment, error)
	ListDeploymentsBySession(sessionID string) ([]models.Deployment, error)
	ListDeploymentsByChain(chain models.Chain) ([]models.Deployment, error)
	UpdateDeploymentOutcome(sessionID string, attempt int, outcome models.TransactionOutcome) error
	GetDeploymentByTransactionHash(txHash string) (*models.Deployment, error)
	DeleteDeployment(id uint) error
}

// deploymentService stores the history of deploy attempts
type deploymentService struct {
	db *gorm.DB
}

// NewDeploymentService creates a new DeploymentService
func NewDeploymentService(db *gorm.DB) DeploymentService {
	return &deploymentService{db: db}
}

func (s *deploymentService) CreateDeployment(deployment *models.Deployment) error {
	return s.db.Create(deployment).Error
}

func (s *deploymentService) GetDeploymentByID(id uint) (*models.Deployment, error) {
	var deployment models.Deployment
	if err := s.db.First(&deployment, id).Error; err != nil {
		return nil, err
	}
	return &deployment, nil
}

func (s *deploymentService) GetDeploymentByAttempt(sessionID string, attempt int) (*models.Deployment, error) {
	var deployment models.Deployment
	err := s.db.Where("session_id = ? AND attempt = ?", sessionID, attempt).First(&deployment).Error
	if err != nil {
		return nil, err
	}
	return &deployment, nil
}

// ListDeployments returns all deployments, newest first
func (s *deploymentService) ListDeployments() ([]models.Deployment, error) {
	var deployments []models.Deployment
	err := s.db.Order("created_at desc").Order("id desc").Find(&deployments).Error
	return deployments, err
}

func (s *deploymentService) ListDeploymentsBySession(sessionID string) ([]models.Deployment, error) {
	var deployments []models.Deployment
	err := s.db.Where("session_id = ?", sessionID).Order("attempt asc").Find(&deployments).Error
	return deployments, err
}

func (s *deploymentService) ListDeploymentsByChain(chain models.Chain) ([]models.Deployment, error) {
	var deployments []models.Deployment
	err := s.db.Where("chain = ?", chain).Order("id desc").Find(&deployments).Error
	return deployments, err
}

// UpdateDeploymentOutcome updates status, hash and error of one attempt. An
// empty hash leaves the stored hash untouched.
func (s *deploymentService) UpdateDeploymentOutcome(sessionID string, attempt int, outcome models.TransactionOutcome) error {
	updates := map[string]interface{}{
		"status": outcome.Status,
		"error":  outcome.Error,
	}
	if outcome.Hash != "" {
		updates["transaction_hash"] = outcome.Hash
	}

	return s.db.Model(&models.Deployment{}).
		Where("session_id = ? AND attempt = ?", sessionID, attempt).
		Updates(updates).Error
}

func (s *deploymentService) GetDeploymentByTransactionHash(txHash string) (*models.Deployment, error) {
	var deployment models.Deployment
	if err := s.db.Where("transaction_hash = ?", txHash).First(&deployment).Error; err != nil {
		return nil, err
	}
	return &deployment, nil
}

func (s *deploymentService) DeleteDeployment(id uint) error {
	return s.db.Delete(&models.Deployment{}, id).Error
}
