package valueobject

import (
	"fmt"

	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
)

type transitionKey struct {
	from JobStatus
	to   JobStatus
}

// jobTransitions: единственный источник правды о том, кто может
// перевести заказ из одного статуса в другой через общий эндпоинт.
var jobTransitions = map[transitionKey][]Party{
	{JobStatusProposed, JobStatusCancelled}:          {PartyBuyer},
	{JobStatusProposed, JobStatusFunded}:             {PartySystem},
	{JobStatusFunded, JobStatusInProgress}:           {PartySeller},
	{JobStatusInProgress, JobStatusPartialCompleted}: {PartySeller},
	{JobStatusPartialCompleted, JobStatusCompleted}:  {PartyBuyer},
	{JobStatusInProgress, JobStatusDisputed}:         {PartyBuyer, PartySeller},
	{JobStatusPartialCompleted, JobStatusDisputed}:   {PartyBuyer, PartySeller},
}

// forcedTransitions доступны только операциям урегулирования споров и
// выпуска эскроу, но не общему эндпоинту смены статуса.
var forcedTransitions = map[transitionKey]struct{}{
	{JobStatusDisputed, JobStatusCancelled}:         {},
	{JobStatusDisputed, JobStatusCompleted}:         {},
	{JobStatusPartialCompleted, JobStatusCompleted}: {},
}

// TransitionDetails передаётся клиенту в деталях ошибки недопустимого перехода.
type TransitionDetails struct {
	From JobStatus `json:"from"`
	To   JobStatus `json:"to"`
}

// NewInvalidTransitionError возвращает InvalidState с обоими статусами.
func NewInvalidTransitionError(from, to JobStatus) *apperror.AppError {
	return apperror.New(
		apperror.ErrCodeInvalidState,
		fmt.Sprintf("недопустимый переход статуса: %s -> %s", from, to),
	).WithDetails(TransitionDetails{From: from, To: to})
}

// CheckTransition проверяет переход по таблице разрешений.
// Совпадающие статусы разрешены любому и ничего не меняют. Пара, отсутствующая
// в таблице, отклоняется как InvalidState для любой роли, включая админа.
// Пара из таблицы, запрошенная не той стороной, даёт Forbidden.
func CheckTransition(from, to JobStatus, party Party) error {
	if from == to {
		return nil
	}
	allowed, ok := jobTransitions[transitionKey{from, to}]
	if !ok {
		return NewInvalidTransitionError(from, to)
	}
	for _, p := range allowed {
		if p == party {
			return nil
		}
	}
	return apperror.New(apperror.ErrCodeForbidden, "роль не может выполнить этот переход")
}

// CheckForcedTransition проверяет принудительный административный переход.
func CheckForcedTransition(from, to JobStatus) error {
	if _, ok := forcedTransitions[transitionKey{from, to}]; !ok {
		return NewInvalidTransitionError(from, to)
	}
	return nil
}

// IsTransitionDefined сообщает, есть ли пара в общей таблице.
func IsTransitionDefined(from, to JobStatus) bool {
	_, ok := jobTransitions[transitionKey{from, to}]
	return ok
}

// AllowedParties возвращает стороны, которым разрешён переход.
func AllowedParties(from, to JobStatus) []Party {
	parties := jobTransitions[transitionKey{from, to}]
	out := make([]Party, len(parties))
	copy(out, parties)
	return out
}
