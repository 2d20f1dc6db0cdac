package domain

// Action: действие, право на которое проверяет Can.
type Action string

const (
	// ActionManageCatalog: создание, изменение и деактивация товаров.
	ActionManageCatalog Action = "catalog.manage"
	// ActionPlaceOrder: оформление заказа от своего имени.
	ActionPlaceOrder Action = "order.place"
	// ActionReadOrder: чтение конкретного заказа.
	ActionReadOrder Action = "order.read"
	// ActionListAllOrders: просмотр заказов всех покупателей.
	ActionListAllOrders Action = "order.list_all"
	// ActionTransitionOrder: смена статуса заказа.
	ActionTransitionOrder Action = "order.transition"
)

// IsAdmin сообщает, что аккаунт администраторский.
func IsAdmin(account *Account) bool {
	return account != nil && account.Role == RoleAdmin
}

// IsOwner сообщает, что аккаунт владеет заказом.
func IsOwner(account *Account, order *Order) bool {
	return account != nil && order != nil && account.ID != "" && account.ID == order.AccountID
}

// Can: единая точка авторизации для каталога и заказов.
// resource используется только для действий над конкретным заказом.
func Can(account *Account, action Action, resource any) bool {
	if account == nil {
		return false
	}

	switch action {
	case ActionManageCatalog, ActionListAllOrders, ActionTransitionOrder:
		return IsAdmin(account)
	case ActionPlaceOrder:
		return account.Role.Valid()
	case ActionReadOrder:
		if IsAdmin(account) {
			return true
		}
		order, ok := resource.(*Order)
		return ok && IsOwner(account, order)
	default:
		return false
	}
}
