// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/rorumall/go-ofscp"
	"github.com/rorumall/go-ofscp/auth"
	"github.com/rorumall/go-ofscp/client"
	"github.com/rorumall/go-ofscp/keys"
)

var keygenCmd = &cli.Command{
	Name:  "keygen",
	Usage: "create a new device key",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "force", Usage: "replace an existing key (the old one has to be registered again)"},
	},
	Action: func(ctx *cli.Context) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if store.Exists(keys.CredentialKey) && !ctx.Bool("force") {
			return errors.Errorf("keygen: a device key already exists in %s", store.Dir())
		}

		cred, err := keys.Generate(nil)
		if err != nil {
			return err
		}
		if err := store.SaveCredential(cred); err != nil {
			return err
		}
		// a new key invalidates the old registration
		if err := store.Remove(keys.SessionKey); err != nil {
			return err
		}
		fmt.Println(cred.PublicKeyBase64())
		return nil
	},
}

var loginCmd = &cli.Command{
	Name:      "login",
	Usage:     "sign in and register the device key with the provider",
	ArgsUsage: "<handle>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "password", EnvVars: []string{"OFSCP_PASSWORD"}, Required: true},
		&cli.StringFlag{Name: "device", Usage: "name shown in the provider's device list"},
	},
	Action: func(ctx *cli.Context) error {
		provider, err := requireProvider()
		if err != nil {
			return err
		}
		handle := ctx.Args().First()
		if handle == "" {
			handle = conf.Handle
		}
		if handle == "" {
			return errors.New("login: handle argument can't be empty")
		}
		device := ctx.String("device")
		if device == "" {
			device = conf.DeviceName
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		cred, err := store.LoadCredential()
		if keys.IsNoSuchKey(err) {
			level.Info(log).Log("event", "no device key, generating one")
			cred, err = keys.Generate(nil)
		}
		if err != nil {
			return err
		}

		c, err := client.New(provider, client.WithLogger(log))
		if err != nil {
			return err
		}
		res, err := c.Login(longctx, handle, ctx.String("password"), cred, device)
		if err != nil {
			return explain(err)
		}

		if err := store.SaveCredential(res.Credential); err != nil {
			return err
		}
		err = store.SaveSession(keys.Session{
			UserID:     res.UserID,
			Domain:     ofscp.NormalizeDomain(provider),
			Credential: &res.Credential,
		})
		if err != nil {
			return err
		}
		fmt.Printf("signed in as %s (key %s)\n", res.UserID, res.Credential.KeyID)
		return nil
	},
}

var signCmd = &cli.Command{
	Name:      "sign",
	Usage:     "print the authentication headers for a request",
	ArgsUsage: "<method> <path>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "body", Usage: "exact request body"},
	},
	Action: func(ctx *cli.Context) error {
		if ctx.Args().Len() != 2 {
			return errors.New("sign: need method and path")
		}
		cred, actor, err := loadIdentity()
		if err != nil {
			return err
		}

		var body []byte
		if ctx.IsSet("body") {
			body = []byte(ctx.String("body"))
		}
		method := strings.ToUpper(ctx.Args().Get(0))
		h, err := auth.Sign(method, ctx.Args().Get(1), body, cred, actor)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", ofscp.HeaderActor, h.Actor)
		fmt.Printf("%s: %s\n", ofscp.HeaderTimestamp, h.Timestamp)
		fmt.Printf("%s: %s\n", ofscp.HeaderSignature, h.SignatureHeader())
		return nil
	},
}

// loadIdentity returns the signed-in device.
func loadIdentity() (keys.Credential, ofscp.Actor, error) {
	store, err := openStore()
	if err != nil {
		return keys.Credential{}, ofscp.Actor{}, err
	}
	sess, err := store.LoadSession()
	if keys.IsNoSuchKey(err) {
		return keys.Credential{}, ofscp.Actor{}, errors.New("not signed in, run login first")
	}
	if err != nil {
		return keys.Credential{}, ofscp.Actor{}, err
	}

	actor, err := ofscp.ParseActor(sess.UserID)
	if err != nil {
		return keys.Credential{}, ofscp.Actor{}, err
	}

	var cred keys.Credential
	if sess.Credential != nil {
		cred = *sess.Credential
	} else if cred, err = store.LoadCredential(); err != nil {
		return keys.Credential{}, ofscp.Actor{}, err
	}
	if conf.RequireSigned && cred.Mode() != keys.AuthModeSigned {
		return keys.Credential{}, ofscp.Actor{}, errors.Wrap(ofscp.ErrMissingKeyID, "device key is not registered")
	}
	return cred, actor, nil
}

// apiClient is a signing client for the configured provider.
func apiClient() (*client.Client, error) {
	provider, err := requireProvider()
	if err != nil {
		return nil, err
	}
	cred, actor, err := loadIdentity()
	if err != nil {
		return nil, err
	}
	opts := []client.Option{
		client.WithLogger(log),
		client.WithSigning(cred, actor),
	}
	if conf.RequireSigned {
		opts = append(opts, client.WithRequireSigned())
	}
	return client.New(provider, opts...)
}

// explain turns API errors into what the provider said about them.
func explain(err error) error {
	var ae *client.APIError
	if errors.As(err, &ae) && ae.Kind == client.KindHTTP {
		if ae.Status == http.StatusUnauthorized {
			return errors.Errorf("not authorized: %s", ae.Detail())
		}
		return errors.Errorf("provider said %d: %s", ae.Status, ae.Detail())
	}
	return err
}
