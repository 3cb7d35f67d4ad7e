package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/geopanel/internal/core/domain"
)

// coordinateResult converts a coordinate to GraphQL output; absent fields are null.
func coordinateResult(c domain.Coordinate) map[string]interface{} {
	out := map[string]interface{}{"latitude": nil, "longitude": nil}
	if c.Latitude != nil {
		out["latitude"] = *c.Latitude
	}
	if c.Longitude != nil {
		out["longitude"] = *c.Longitude
	}
	return out
}

// floatArg reads an optional Float argument. Omitted and null both mean absent.
func floatArg(args map[string]interface{}, name string) *float64 {
	if v, ok := args[name].(float64); ok {
		return domain.Float(v)
	}
	return nil
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Coordinate",
		Description: "Shared map position. A null field is absent.",
		Fields: graphql.Fields{
			"latitude":  &graphql.Field{Type: graphql.Float},
			"longitude": &graphql.Field{Type: graphql.Float},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"path":   &graphql.Field{Type: graphql.String},
			"name":   &graphql.Field{Type: graphql.String},
			"module": &graphql.Field{Type: graphql.String},
			"loaded": &graphql.Field{Type: graphql.Boolean},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"routes": &graphql.Field{
				Type:        graphql.NewList(routeType),
				Description: "The application shell route table",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var out []routeInfo
					for _, e := range deps.Views.Routes().Entries() {
						out = append(out, toRouteInfo(deps, e))
					}
					return out, nil
				},
			},
			"resolve": &graphql.Field{
				Type:        routeType,
				Description: "Resolve a path to its route without loading the view",
				Args: graphql.FieldConfigArgument{
					"path": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					entry, err := deps.Views.Routes().Resolve(p.Args["path"].(string))
					if err != nil {
						return nil, err
					}
					return toRouteInfo(deps, entry), nil
				},
			},
			"coordinate": &graphql.Field{
				Type:        coordinateType,
				Description: "Current shared coordinate",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return coordinateResult(deps.Store.Snapshot()), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"setLatitude": &graphql.Field{
				Type:        coordinateType,
				Description: "Set the latitude; omit or pass null to mark it absent",
				Args: graphql.FieldConfigArgument{
					"value": &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					deps.Store.SetLatitude(p.Context, floatArg(p.Args, "value"))
					return coordinateResult(deps.Store.Snapshot()), nil
				},
			},
			"setLongitude": &graphql.Field{
				Type:        coordinateType,
				Description: "Set the longitude; omit or pass null to mark it absent",
				Args: graphql.FieldConfigArgument{
					"value": &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					deps.Store.SetLongitude(p.Context, floatArg(p.Args, "value"))
					return coordinateResult(deps.Store.Snapshot()), nil
				},
			},
			"setCoordinate": &graphql.Field{
				Type:        coordinateType,
				Description: "Replace both fields",
				Args: graphql.FieldConfigArgument{
					"latitude":  &graphql.ArgumentConfig{Type: graphql.Float},
					"longitude": &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					deps.Store.Set(p.Context, domain.Coordinate{
						Latitude:  floatArg(p.Args, "latitude"),
						Longitude: floatArg(p.Args, "longitude"),
					})
					return coordinateResult(deps.Store.Snapshot()), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
