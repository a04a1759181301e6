package models

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

func (u User) AsPeer() Peer {
	return Peer{ID: u.ID, Name: u.Name, Role: u.Role}
}
