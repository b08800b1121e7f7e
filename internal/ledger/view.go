package ledger

import "billrecords/internal/core"

type UserTotal struct {
	User     core.User
	Total    string
	Selected bool
}

// View is a consistent copy of everything the page renders.
type View struct {
	Users         []UserTotal
	Selected      *core.User
	PendingAmount string
	Error         string
	Bills         []core.Bill
	GrandTotal    string
}

func (l *Ledger) View() View {
	l.mu.Lock()
	defer l.mu.Unlock()

	v := View{
		PendingAmount: l.pending,
		Error:         l.errMsg,
		Bills:         append([]core.Bill(nil), l.bills...),
		GrandTotal:    core.FormatAmount(core.Sum(l.bills, nil)),
	}
	if l.selected != nil {
		u := *l.selected
		v.Selected = &u
	}
	for _, u := range l.users {
		v.Users = append(v.Users, UserTotal{
			User:     u,
			Total:    core.FormatAmount(userTotal(l.bills, u.ID)),
			Selected: l.selected != nil && l.selected.ID == u.ID,
		})
	}
	return v
}
