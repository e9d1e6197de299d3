package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/logger"
)

// ParticipantSink принимает профили участников (хранилище в памяти).
type ParticipantSink interface {
	PutParticipant(p *entity.Participant)
}

// SeedDevelopment заполняет справочник участников демо-пользователями и
// печатает их access-токены. Только для разработки без базы.
func SeedDevelopment(sink ParticipantSink, tokens *TokenManager, ttl time.Duration) ([]*entity.Participant, error) {
	participants := []*entity.Participant{
		{ID: uuid.New(), Name: "Demo Buyer", Email: "buyer@servicehub.local", Role: valueobject.RoleBuyer},
		{
			ID:    uuid.New(),
			Name:  "Demo Seller",
			Email: "seller@servicehub.local",
			Role:  valueobject.RoleSeller,
			Payout: &entity.PayoutAccount{
				AccountNumber: "0000000000",
				BankCode:      "057",
				AccountName:   "DEMO SELLER",
			},
		},
		{ID: uuid.New(), Name: "Demo Admin", Email: "admin@servicehub.local", Role: valueobject.RoleAdmin},
	}

	for _, p := range participants {
		sink.PutParticipant(p)
		token, err := tokens.IssueAccess(entity.Actor{ID: p.ID, Role: p.Role}, ttl)
		if err != nil {
			return nil, err
		}
		logger.Log.WithFields(logrus.Fields{
			"user_id": p.ID,
			"role":    p.Role,
			"token":   token,
		}).Info("seed: демо-участник создан")
	}
	return participants, nil
}
