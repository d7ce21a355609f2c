package xrefresh_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/omeyang/xtube/pkg/auth/xrefresh"
)

type printRequest struct {
	name       string
	credential string
}

func (r *printRequest) WithCredential(credential string) { r.credential = credential }

func (r *printRequest) Replay(context.Context) error {
	fmt.Printf("%s replayed with %s\n", r.name, r.credential)
	return nil
}

func ExampleCoordinator_Authorize() {
	c, err := xrefresh.New(xrefresh.RefresherFunc(func(context.Context) (string, error) {
		return "fresh", nil
	}))
	if err != nil {
		fmt.Println(err)
		return
	}

	if err := c.Authorize(context.Background(), &printRequest{name: "GET /videos"}); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(c.State(), c.Stats().Refreshes)
	// Output:
	// GET /videos replayed with fresh
	// IDLE 1
}

func ExampleIsRefreshFailure() {
	c, _ := xrefresh.New(xrefresh.RefresherFunc(func(context.Context) (string, error) {
		return "", errors.New("refresh token expired")
	}))

	err := c.Authorize(context.Background(), &printRequest{name: "GET /videos"})
	fmt.Println(xrefresh.IsRefreshFailure(err))
	// Output:
	// true
}
