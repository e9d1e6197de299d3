package repository

import "context"

// Store объединяет репозитории и даёт единицу работы. Внутри Atomic все
// записи в заказ, транзакцию и журнал фиксируются вместе или не фиксируются.
type Store interface {
	Jobs() JobRepository
	Transactions() TransactionRepository
	Audit() AuditRepository
	Participants() ParticipantRepository
	// Atomic выполняет fn в одной транзакции. Ошибка из fn откатывает все изменения.
	Atomic(ctx context.Context, fn func(Store) error) error
}
