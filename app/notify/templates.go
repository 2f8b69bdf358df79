package notify

// default message templates, kept close to each other for easy tweaking

const defaultReadyTemplate = `<!DOCTYPE html>
<html>
	<head>
		<meta name="viewport" content="width=device-width" />
		<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
		<style type="text/css">
			body {
				font-family: "Arial";
				font-size: 1.0em;
			}
			ul {
				margin-top: -0.5em;
				margin-left: -0.5em;
			}
			.bold {
				color: #288828;
				font-weight: 900;
			}
		</style>
	</head>

	<body>
		<p>Application ready to submit on <span class="bold">{{.Host}}</span> at {{.TS.Format "2006-01-02T15:04:05Z07:00"}}</p>
		<ul>
			<li>Position: <span class="bold">{{.Title}}</span></li>
			<li>Company: <span class="bold">{{.Company}}</span></li>
			<li>Link: <a href="{{.URL}}">{{.URL}}</a></li>
		</ul>
		<p>Review the form in the browser and click Submit.</p>
	</body>
</html>
`

const defaultSummaryTemplate = `<!DOCTYPE html>
<html>
	<head>
		<meta name="viewport" content="width=device-width" />
		<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
		<style type="text/css">
			body {
				font-family: "Arial";
				font-size: 1.0em;
			}
			ul {
				margin-top: -0.5em;
				margin-left: -0.5em;
			}
			.bold {
				color: #282888;
				font-weight: 900;
			}
		</style>
	</head>

	<body>
		<p>Apply session finished on <span class="bold">{{.Host}}</span> at {{.TS.Format "2006-01-02T15:04:05Z07:00"}}</p>
		<ul>
		{{- range .Lines}}
			<li>{{.Status}}: <span class="bold">{{.Count}}</span></li>
		{{- end}}
		</ul>
		<p>Total jobs processed: {{.Total}}</p>
	</body>
</html>
`
