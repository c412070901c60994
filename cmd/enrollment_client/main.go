// Command-line client for the enrollment registry management API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/enrollment-registry-client/api"
	"github.com/ruteri/enrollment-registry-client/cmd/flags"
	"github.com/ruteri/enrollment-registry-client/interfaces"
	"github.com/ruteri/enrollment-registry-client/registry"
	"github.com/ruteri/enrollment-registry-client/transport"
)

var flagRegistrationID = &cli.StringFlag{
	Name:  "registration-id",
	Usage: "registration id of the enrollment (generated when empty)",
}
var flagDeviceID = &cli.StringFlag{
	Name:  "device-id",
	Usage: "device id to assign on provisioning",
}
var flagETag = &cli.StringFlag{
	Name:  "etag",
	Usage: "eTag for a conditional operation; empty or * is unconditional",
}
var flagQuery = &cli.StringFlag{
	Name:  "query",
	Value: "SELECT * FROM enrollments",
	Usage: "query specification to run",
}
var flagPageSize = &cli.IntFlag{
	Name:  "page-size",
	Value: 0,
	Usage: "records per result page, 0 for the service default",
}

func main() {
	app := &cli.App{
		Name:  "enrollment-client",
		Usage: "Manage individual enrollments in a device provisioning registry",
		Flags: []cli.Flag{
			flags.ConnStringFlag,
			flags.EndpointFlag,
		},
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "create or update an individual enrollment with symmetric key attestation",
				Flags: []cli.Flag{flagRegistrationID, flagDeviceID, flagETag},
				Action: func(cCtx *cli.Context) error {
					return withClient(cCtx, func(ctx context.Context, client *registry.Client) error {
						id := cCtx.String(flagRegistrationID.Name)
						if id == "" {
							id = uuid.NewString()
						}
						stored, err := client.CreateOrUpdateIndividualEnrollment(ctx, &api.IndividualEnrollment{
							RegistrationID: id,
							DeviceID:       cCtx.String(flagDeviceID.Name),
							Attestation: api.AttestationMechanism{
								Type:         "symmetricKey",
								SymmetricKey: &api.SymmetricKeyAttestation{},
							},
							ProvisioningStatus: api.ProvisioningEnabled,
							ETag:               cCtx.String(flagETag.Name),
						})
						if err != nil {
							return fmt.Errorf("could not store enrollment: %w", err)
						}
						return printJSON(stored)
					})
				},
			},
			{
				Name:  "get",
				Usage: "fetch an individual enrollment",
				Flags: []cli.Flag{flagRegistrationID},
				Action: func(cCtx *cli.Context) error {
					return withClient(cCtx, func(ctx context.Context, client *registry.Client) error {
						stored, err := client.GetIndividualEnrollment(ctx, cCtx.String(flagRegistrationID.Name))
						if err != nil {
							return fmt.Errorf("could not fetch enrollment: %w", err)
						}
						return printJSON(stored)
					})
				},
			},
			{
				Name:  "delete",
				Usage: "delete an individual enrollment",
				Flags: []cli.Flag{flagRegistrationID, flagETag},
				Action: func(cCtx *cli.Context) error {
					return withClient(cCtx, func(ctx context.Context, client *registry.Client) error {
						err := client.DeleteIndividualEnrollment(ctx, cCtx.String(flagRegistrationID.Name), cCtx.String(flagETag.Name))
						if err != nil {
							return fmt.Errorf("could not delete enrollment: %w", err)
						}
						return nil
					})
				},
			},
			{
				Name:  "query",
				Usage: "list individual enrollments matching a query",
				Flags: []cli.Flag{flagQuery, flagPageSize},
				Action: func(cCtx *cli.Context) error {
					return withClient(cCtx, func(ctx context.Context, client *registry.Client) error {
						iter, err := client.QueryIndividualEnrollments(
							api.QuerySpecification{Query: cCtx.String(flagQuery.Name)},
							cCtx.Int(flagPageSize.Name),
						)
						if err != nil {
							return fmt.Errorf("could not start query: %w", err)
						}
						for iter.HasMore() {
							page, err := iter.Advance(ctx)
							if err != nil {
								if errors.Is(err, interfaces.ErrIteratorExhausted) {
									break
								}
								return fmt.Errorf("could not fetch query page: %w", err)
							}
							for _, enrollment := range page {
								if err := printJSON(enrollment); err != nil {
									return err
								}
							}
						}
						return nil
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// withClient builds a transport from the connection flags, runs fn and closes
// the client afterwards.
func withClient(cCtx *cli.Context, fn func(context.Context, *registry.Client) error) error {
	var tr *transport.HTTPTransport
	switch {
	case cCtx.String(flags.ConnStringFlag.Name) != "":
		var err error
		tr, err = transport.NewHTTPTransport(cCtx.String(flags.ConnStringFlag.Name))
		if err != nil {
			return fmt.Errorf("could not create transport: %w", err)
		}
	case cCtx.String(flags.EndpointFlag.Name) != "":
		tr = transport.NewHTTPTransportForEndpoint(cCtx.String(flags.EndpointFlag.Name))
	default:
		return errors.New("either --connection-string or --endpoint is required")
	}

	client, err := registry.NewClient(&registry.ClientConfig{Transport: tr})
	if err != nil {
		return fmt.Errorf("could not create client: %w", err)
	}
	defer client.Close()

	return fn(cCtx.Context, client)
}

func printJSON(v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not encode response: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}
