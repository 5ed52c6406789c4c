package walletconnect

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/team-renaissance/neo-wallet-adapter/pkg/errors"
)

const (
	alphanumerical  = "abcdefghijklmnopqrstuvwxyz0123456789"
	bridgeURLFormat = "https://%v.bridge.walletconnect.org"

	protocolName    = "wc"
	protocolVersion = "1"
)

// randomBridgeURL picks one of the public relay bridges.
func randomBridgeURL() string {
	n := rand.Intn(len(alphanumerical))
	c := alphanumerical[n]
	return fmt.Sprintf(bridgeURLFormat, string(c))
}

// websocketURL upgrades a bridge URL to its websocket endpoint.
func websocketURL(bridgeURL string) string {
	switch {
	case strings.HasPrefix(bridgeURL, "https"):
		bridgeURL = strings.Replace(bridgeURL, "https", "wss", 1)
	case strings.HasPrefix(bridgeURL, "http"):
		bridgeURL = strings.Replace(bridgeURL, "http", "ws", 1)
	}
	return bridgeURL + "?protocol=" + protocolName + "&version=" + protocolVersion
}

// pairingURI builds the URI the wallet scans to approve the pairing.
func pairingURI(handshakeTopic, bridgeURL string, encryptionKey []byte) string {
	return fmt.Sprintf("%s:%s@%s?bridge=%s&key=%s",
		protocolName, handshakeTopic, protocolVersion,
		url.QueryEscape(bridgeURL), hex.EncodeToString(encryptionKey))
}

// QRCode renders a pairing URI as a PNG image.
func QRCode(uri string) ([]byte, error) {
	png, err := qrcode.Encode(uri, qrcode.Medium, 256)
	if err != nil {
		return nil, errors.WrapAndReport(err, "encode pairing qr code")
	}
	return png, nil
}

// WriteQRFile renders a pairing URI as a PNG file at the given path.
func WriteQRFile(uri, path string) error {
	if err := qrcode.WriteFile(uri, qrcode.Medium, 256, path); err != nil {
		return errors.WrapAndReport(err, "write pairing qr code file")
	}
	return nil
}
