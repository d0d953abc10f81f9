// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package client

import (
	"context"
	"net/url"

	"github.com/pkg/errors"

	"github.com/rorumall/go-ofscp/keys"
	"github.com/rorumall/go-ofscp/message"
)

const loginPath = "/api/auth/login"

// LoginResult is a registered device.
type LoginResult struct {
	UserID     string
	Credential keys.Credential
}

// Login authenticates with handle and password and registers the public half of
// cred as a device key. The returned credential carries the key id the provider
// assigned.
func (c *Client) Login(ctx context.Context, handle, password string, cred keys.Credential, deviceName string) (LoginResult, error) {
	pub := cred.PublicKeyBase64()
	req := message.LoginRequest{
		Handle:          handle,
		Password:        password,
		DevicePublicKey: &pub,
	}
	if deviceName != "" {
		req.DeviceName = &deviceName
	}

	resp, err := PostJSON[message.LoginResponse](ctx, c, loginPath, req)
	if err != nil {
		return LoginResult{}, err
	}
	if resp.KeyID == nil || *resp.KeyID == "" {
		return LoginResult{}, errors.Errorf("client: provider did not register the device key of %s", handle)
	}
	return LoginResult{
		UserID:     resp.UserID,
		Credential: cred.WithKeyID(*resp.KeyID),
	}, nil
}

// ChannelMessagesPath is the history endpoint of a channel.
func ChannelMessagesPath(groupID, channelID string) string {
	return "/api/groups/" + url.PathEscape(groupID) + "/channels/" + url.PathEscape(channelID) + "/messages"
}

// ChannelMessages fetches the stored history of a channel.
func (c *Client) ChannelMessages(ctx context.Context, groupID, channelID string) (message.MessagesPage, error) {
	return GetJSON[message.MessagesPage](ctx, c, ChannelMessagesPath(groupID, channelID))
}
