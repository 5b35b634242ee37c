package models

// All lists every table model in dependency order.
func All() []interface{} {
	return []interface{}{
		(*Event)(nil),
		(*User)(nil),
		(*TicketType)(nil),
		(*Coupon)(nil),
		(*Payment)(nil),
		(*Ticket)(nil),
		(*Referral)(nil),
		(*CheckIn)(nil),
		(*WalletTransaction)(nil),
	}
}
