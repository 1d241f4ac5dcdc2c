package altered

import (
	"context"
	"fmt"
)

// User is the account behind the bearer token.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname,omitempty"`
}

// UserRepository reads the signed-in user.
type UserRepository struct {
	api API
}

// NewUserRepository creates a repository.
func NewUserRepository(api API) *UserRepository {
	return &UserRepository{api: api}
}

// CurrentUser returns the account the token belongs to.
func (r *UserRepository) CurrentUser(ctx context.Context) (User, error) {
	var user User
	if err := r.api.GetJSON(ctx, PathMe, nil, &user); err != nil {
		return User{}, fmt.Errorf("current user: %w", err)
	}
	return user, nil
}
